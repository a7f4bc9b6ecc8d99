// internal/chat/errors.go
package chat

import "errors"

var (
	// ErrModelSelection wraps any failure to open the model menu or pick a model.
	ErrModelSelection = errors.New("model selection failed")
	// ErrImageUpload wraps any failure to attach an image.
	ErrImageUpload = errors.New("image upload failed")
	// ErrClosed is returned by actions on a client after Close.
	ErrClosed = errors.New("chat client is closed")
)
