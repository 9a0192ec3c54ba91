package invoker

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Generation parameter names as the endpoints expect them.
const (
	ParamTemperature  = "temperature"
	ParamTopP         = "top_p"
	ParamMaxNewTokens = "max_new_tokens"
)

var knobNames = map[string]string{
	"temperature": ParamTemperature,
	"topP":        ParamTopP,
	"maxTokens":   ParamMaxNewTokens,
}

// Params maps user supplied knobs to generation parameters. Unknown knobs are
// dropped and nothing is defaulted: the result holds exactly the recognized
// keys the user sent.
func Params(knobs map[string]any) map[string]any {
	params := make(map[string]any, len(knobNames))
	for knob, param := range knobNames {
		if v, ok := knobs[knob]; ok {
			params[param] = v
		}
	}
	return params
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		return strconv.ParseFloat(n, 64)
	}
	return 0, fmt.Errorf("not a number: %v", v)
}
