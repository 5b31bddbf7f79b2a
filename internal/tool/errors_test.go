package tool

import (
	"errors"
	"testing"
)

func TestInvalidArgs(t *testing.T) {
	t.Parallel()

	err := InvalidArgs("media_type %q must be one of %v", "book", []string{"movie", "tv"})
	if !errors.Is(err, ErrInvalidArguments) {
		t.Fatalf("errors.Is(%v, ErrInvalidArguments) = false", err)
	}
	want := `invalid tool arguments: media_type "book" must be one of [movie tv]`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if errors.Is(err, ErrToolNotFound) {
		t.Error("argument error matches ErrToolNotFound")
	}
}
