package loader

import (
	"context"
	"io"
	"iter"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/pkg/errors"
)

var _ train.Dataset = (*Loader)(nil)

// Name implements train.Dataset.
func (l *Loader) Name() string {
	return l.cfg.Name
}

// Yield implements train.Dataset. Inputs hold the images tensor and labels
// the landmarks tensor of the next batch. At the end of the epoch it returns
// io.EOF until Reset is called.
func (l *Loader) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	l.pullMu.Lock()
	defer l.pullMu.Unlock()
	if l.next == nil {
		l.next, l.stop = iter.Pull2(l.Epoch(context.Background()))
	}
	batch, err, ok := l.next()
	if !ok {
		return nil, nil, nil, io.EOF
	}
	if err != nil {
		return nil, nil, nil, err
	}
	images, landmarks, err := batch.ToGomlxTensors()
	if err != nil {
		return nil, nil, nil, errors.WithMessagef(err, "loader %s: failed to build tensors", l.cfg.Name)
	}
	return l, []*tensors.Tensor{images}, []*tensors.Tensor{landmarks}, nil
}

// Reset implements train.Dataset. The next Yield starts a new epoch.
func (l *Loader) Reset() {
	l.pullMu.Lock()
	defer l.pullMu.Unlock()
	if l.stop != nil {
		l.stop()
	}
	l.next, l.stop = nil, nil
}
