package esbench

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

type Properties map[string]string

func NewProperties() Properties {
	return make(Properties)
}

func (self Properties) Get(key string) string {
	v, _ := self[key]
	return v
}

func (self Properties) GetDefault(key string, defaultValue string) string {
	if v, ok := self[key]; ok {
		return v
	}
	return defaultValue
}

func (self Properties) Add(key, value string) {
	self[key] = value
}

// Merge copies every entry of other over the current entries.
func (self Properties) Merge(other map[string]string) {
	for k, v := range other {
		self[k] = v
	}
}

func (self Properties) Clone() Properties {
	ret := make(Properties, len(self))
	ret.Merge(self)
	return ret
}

func (self Properties) GetInt64(key string, defaultValue string) (int64, error) {
	propStr := strings.TrimSpace(self.GetDefault(key, defaultValue))
	v, err := strconv.ParseInt(propStr, 0, 64)
	if err != nil {
		return 0, NewConfigurationError("invalid integer %s=%q", key, propStr)
	}
	return v, nil
}

func (self Properties) GetBool(key string, defaultValue string) (bool, error) {
	propStr := strings.TrimSpace(self.GetDefault(key, defaultValue))
	v, err := strconv.ParseBool(propStr)
	if err != nil {
		return false, NewConfigurationError("invalid boolean %s=%q", key, propStr)
	}
	return v, nil
}

// GetDuration accepts Go durations ("1m30s") as well as plain seconds ("90").
func (self Properties) GetDuration(key string, defaultValue string) (time.Duration, error) {
	propStr := strings.TrimSpace(self.GetDefault(key, defaultValue))
	if d, err := time.ParseDuration(propStr); err == nil {
		return d, nil
	}
	seconds, err := strconv.ParseFloat(propStr, 64)
	if err != nil {
		return 0, NewConfigurationError("invalid duration %s=%q", key, propStr)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

func MillisecondToNanosecond(millis int64) int64 {
	return millis * 1000 * 1000
}

func NanosecondToMicrosecond(nano int64) int64 {
	return nano / 1000
}

func Output(format string, args ...interface{}) {
	fmt.Fprintf(OutputDest, format, args...)
	fmt.Fprintln(OutputDest, "")
}

func OutputProperties(p Properties) {
	Output("***************** properties *****************")
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		Output("\"%s\"=\"%s\"", k, p[k])
	}
	Output("**********************************************")
}
