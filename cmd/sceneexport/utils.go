package main

import (
	"io"
	"os"

	"github.com/binzume/sceneexport/scene"
	"github.com/binzume/sceneexport/slxp"
)

// objectNames answers name requests from the scene description.
func objectNames(doc *scene.Document) slxp.StaticResolver {
	names := slxp.StaticResolver{}
	for _, o := range doc.Objects {
		name := o.Name
		if name == "" {
			name = "Object"
		}
		names[o.ID] = name
	}
	return names
}

func dumpSLXP(path string, w io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	doc, err := slxp.ReadDocument(f)
	if err != nil {
		return err
	}
	return slxp.WriteJSON(w, doc)
}
