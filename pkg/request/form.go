package request

import (
	jsonlib "encoding/json"
	"fmt"
	"net/url"

	"github.com/keboola/go-utils/pkg/orderedmap"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
)

// Body encodes body fields as "application/x-www-form-urlencoded".
// Keys are sorted, keys and values are percent-encoded.
//
// A field whose value cannot be converted to a string is logged and omitted,
// the rest of the body is still sent.
// The second return value is false if there are no fields, then no body should be sent.
func (s Spec) Body(logger logrus.FieldLogger) (string, bool) {
	if len(s.fields) == 0 {
		return "", false
	}

	form := make(url.Values, len(s.fields))
	for k, v := range s.fields {
		str, err := castToString(v)
		if err != nil {
			if logger != nil {
				logger.WithField("field", k).Errorf("cannot encode body field: %s", err)
			}
			continue
		}
		form.Set(k, str)
	}

	if logger != nil {
		logger.Debugf("values added to the request body: %d of %d", len(form), len(s.fields))
	}
	return form.Encode(), true
}

func castToString(v any) (string, error) {
	// Ordered map
	if orderedMap, ok := v.(*orderedmap.OrderedMap); ok {
		// Standard json encoding library is used, the output must be compact.
		if out, err := jsonlib.Marshal(orderedMap); err != nil {
			return "", fmt.Errorf(`cannot cast %T to string: %w`, v, err)
		} else {
			return string(out), nil
		}
	}

	// Other types
	if out, err := cast.ToStringE(v); err != nil {
		return "", fmt.Errorf(`cannot cast %T to string: %w`, v, err)
	} else {
		return out, nil
	}
}
