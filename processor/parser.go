// Package processor turns raw feed payloads into ordered trade records
// and folds stored records into minute bars. All of it runs on the feed
// session's serial dispatch path.
package processor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"tickflow/models"
)

// ErrMalformedTick marks tick payloads that do not match the expected
// 7-field shape. Callers log and drop the frame; session state is
// untouched.
var ErrMalformedTick = errors.New("malformed tick")

const tickFields = 7

// ParseTick parses one pipe-delimited tick payload of the form
//
//	instrument_id|HH:MM:SS|ask|bid|settlement|cum_volume|
//
// The trailing empty field is discarded. Prices and volume stay unscaled.
func ParseTick(payload string) (models.RawTick, error) {
	fields := strings.Split(payload, "|")
	if len(fields) != tickFields {
		return models.RawTick{}, fmt.Errorf("%w: %d fields, want %d", ErrMalformedTick, len(fields), tickFields)
	}

	clock := strings.Split(fields[1], ":")
	if len(clock) != 3 {
		return models.RawTick{}, fmt.Errorf("%w: bad time %q", ErrMalformedTick, fields[1])
	}

	tick := models.RawTick{ProductID: fields[0]}

	var err error
	if tick.Hour, err = parseClockPart(clock[0]); err != nil {
		return models.RawTick{}, err
	}
	if tick.Minute, err = parseClockPart(clock[1]); err != nil {
		return models.RawTick{}, err
	}
	if tick.Second, err = parseClockPart(clock[2]); err != nil {
		return models.RawTick{}, err
	}

	if tick.Ask, err = parseAmount(fields[2]); err != nil {
		return models.RawTick{}, err
	}
	if tick.Bid, err = parseAmount(fields[3]); err != nil {
		return models.RawTick{}, err
	}
	if tick.Settlement, err = parseAmount(fields[4]); err != nil {
		return models.RawTick{}, err
	}
	if tick.Volume, err = parseAmount(fields[5]); err != nil {
		return models.RawTick{}, err
	}

	return tick, nil
}

func parseClockPart(s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: bad time part %q", ErrMalformedTick, s)
	}
	return v, nil
}

func parseAmount(s string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad numeric field %q", ErrMalformedTick, s)
	}
	return v, nil
}
