package codec

import "fmt"

func errSizeMismatch(want, got int) error {
	return fmt.Errorf("size mismatch: expected %d bytes, got %d", want, got)
}
