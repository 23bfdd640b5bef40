package export

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Reserved texture ids.
var (
	TexturePlywood     = uuid.MustParse("89556747-24cb-43ed-920b-47caed15465f")
	TextureBlank       = uuid.MustParse("5748decc-f629-461c-9a36-a35a221fe21f")
	TextureInvisible   = uuid.MustParse("38b86f85-2575-52a9-a531-23108d8da837")
	TextureTransparent = uuid.MustParse("8dcd4a48-2d37-4909-9f78-f7a9eb4ef903")
	TextureMedia       = uuid.MustParse("8b5fec65-8d8d-9dc5-cda8-8fdf2716e361")
)

var (
	ErrNothingSelected = errors.New("no objects selected for export")
	ErrNoFilename      = errors.New("no file name provided")
	ErrFaceLayout      = errors.New("face arrays disagree in length")
)
