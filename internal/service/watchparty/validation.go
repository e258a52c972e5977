package watchparty

import (
	"errors"
	"fmt"
	"math"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const MaxMessageLength = 1000

var RoomIDRule = []validation.Rule{
	validation.Required,
	validation.Length(1, 64),
	validation.Match(regexp.MustCompile("^[A-Za-z0-9_-]+$")),
}

var ConnIDRule = []validation.Rule{
	validation.Required,
}

var CurrentTimeRule = []validation.Rule{
	validation.Min(0.0),
	validation.By(func(value any) error {
		v, _ := value.(float64)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New("must be a finite number")
		}
		return nil
	}),
}

var MessageRule = []validation.Rule{
	validation.Required,
	validation.RuneLength(1, MaxMessageLength),
}

func validate(v validation.Validatable) error {
	if err := v.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	return nil
}
