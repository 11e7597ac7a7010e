package realtime

import (
	"fmt"
	"reflect"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// Postgres renders timestamps in a few shapes depending on the column type.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999-07",
	"2006-01-02 15:04:05.999999",
}

func stringToTimeHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(time.Time{}) {
		return data, nil
	}
	s, ok := data.(string)
	if !ok {
		return data, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return nil, fmt.Errorf("unrecognized timestamp %q", s)
}

// DecodeRecord maps a raw record onto M using its json tags. Strings are
// converted to time.Time and to any encoding.TextUnmarshaler (uuid.UUID,
// decimal.Decimal).
func DecodeRecord[M any](rec Record) (M, error) {
	var m M
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  &m,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			stringToTimeHook,
			mapstructure.TextUnmarshallerHookFunc(),
		),
		WeaklyTypedInput: true,
	})
	if err != nil {
		return m, err
	}
	if err := dec.Decode(map[string]any(rec)); err != nil {
		return m, err
	}
	return m, nil
}
