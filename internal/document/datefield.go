package document

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/segment-search/pkg/errors"
)

// dateLen is the width of a thousand years of milliseconds in base 36, so
// encoded dates sort lexicographically in time order.
var dateLen = len(strconv.FormatInt(1000*365*24*60*60*1000, 36))

// MinDateString is the encoding of the epoch.
func MinDateString() string {
	s, _ := TimeToString(0)
	return s
}

// MaxDateString sorts after every encodable date.
func MaxDateString() string {
	return strings.Repeat("z", dateLen)
}

// DateToString encodes t for use as a Keyword field value.
func DateToString(t time.Time) (string, error) {
	return TimeToString(t.UnixMilli())
}

// TimeToString encodes milliseconds since the epoch as a fixed-width base-36
// string.
func TimeToString(millis int64) (string, error) {
	if millis < 0 {
		return "", fmt.Errorf("%w: time %d is before the epoch", apperrors.ErrInvalidInput, millis)
	}
	s := strconv.FormatInt(millis, 36)
	if len(s) > dateLen {
		return "", fmt.Errorf("%w: time %d is too late to encode", apperrors.ErrInvalidInput, millis)
	}
	return strings.Repeat("0", dateLen-len(s)) + s, nil
}

// StringToTime decodes a value produced by TimeToString.
func StringToTime(s string) (int64, error) {
	v, err := strconv.ParseInt(s, 36, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: decoding date %q: %v", apperrors.ErrInvalidInput, s, err)
	}
	return v, nil
}

// StringToDate decodes s into a UTC time.
func StringToDate(s string) (time.Time, error) {
	millis, err := StringToTime(s)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(millis).UTC(), nil
}
