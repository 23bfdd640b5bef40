package texture

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/binzume/sceneexport/logger"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrTimeout = errors.New("timed out waiting for texture")

type Request struct {
	ID   uuid.UUID
	Name string
}

type Result struct {
	Request
	Path string
	Err  error
}

// Saver writes textures to Dir as <name>.<ext>. Files are written in completion order.
type Saver struct {
	Cache  Cache
	Dir    string
	Format string
	// Timeout bounds the wait for each texture.
	Timeout         time.Duration
	Concurrency     int
	PollInterval    time.Duration
	ResolutionLimit int
	Log             *zap.Logger
}

func (s *Saver) logger() *zap.Logger {
	if s.Log != nil {
		return s.Log
	}
	return logger.Log.Named("texture")
}

// Save processes all requests. Failures are logged and reported per item.
// Cancelling ctx abandons the remaining items.
func (s *Saver) Save(ctx context.Context, reqs []Request) []Result {
	log := s.logger()
	results := make([]Result, len(reqs))

	var g errgroup.Group
	if s.Concurrency > 0 {
		g.SetLimit(s.Concurrency)
	}
	log.Info("saving textures", zap.Int("count", len(reqs)))
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			results[i] = Result{Request: req}
			results[i].Path, results[i].Err = s.saveOne(ctx, req)
			if results[i].Err != nil {
				log.Warn("failed to save texture", zap.Stringer("id", req.ID), zap.Error(results[i].Err))
			} else {
				log.Info("saved texture", zap.String("path", results[i].Path))
			}
			return nil
		})
	}
	_ = g.Wait()
	log.Info("done saving textures")
	return results
}

func (s *Saver) waitResident(ctx context.Context, id uuid.UUID) error {
	interval := s.PollInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		level, ok := s.Cache.DiscardLevel(id)
		if !ok {
			return ErrNotFound
		}
		if level == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrTimeout
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Saver) saveOne(ctx context.Context, req Request) (string, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := s.waitResident(ctx, req.ID); err != nil {
		return "", err
	}
	img, err := s.Cache.Read(ctx, req.ID)
	if err != nil {
		return "", errors.Wrap(err, "read")
	}
	data, ext, err := Encode(img, s.Format, s.ResolutionLimit)
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.Dir, req.Name+"."+ext)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}
