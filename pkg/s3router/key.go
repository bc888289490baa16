package s3router

import (
	"strings"

	"github.com/google/uuid"
)

// KeyInput is everything that determines an object key.
type KeyInput struct {
	FileName          string
	ObjectName        string
	RandomizeFilename bool
	KeyPrefix         string
}

// DeriveKey returns the logical filename and the storage key for an upload.
// FileName wins over ObjectName. With RandomizeFilename a fresh UUID is
// prepended so repeated uploads of the same name never collide.
func DeriveKey(in KeyInput) (filename, key string, err error) {
	filename = in.FileName
	if filename == "" {
		filename = in.ObjectName
	}
	if filename == "" {
		return "", "", &ValidationError{
			Param:   "objectName",
			Message: "Either objectName or fileName is required as a query parameter",
			Err:     ErrMissingFilename,
		}
	}

	if in.RandomizeFilename {
		filename = uuid.New().String() + "_" + filename
	}

	key = filename
	if in.KeyPrefix != "" {
		key = strings.TrimSuffix(in.KeyPrefix, "/") + "/" + filename
	}

	return filename, key, nil
}
