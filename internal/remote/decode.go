package remote

import (
	"fmt"
	"log/slog"

	"github.com/tidwall/gjson"
)

const maxLoggedRaw = 200

// Decode parses an activity list response. Records missing required fields
// are dropped and logged; the rest of the batch is kept.
func Decode(body []byte, logger *slog.Logger) (*Batch, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if !gjson.ValidBytes(body) {
		return nil, ErrMalformedResponse
	}
	root := gjson.ParseBytes(body)

	if e := root.Get("error"); e.Exists() {
		return nil, &ServerError{
			Code:        e.Get("code").String(),
			Description: e.Get("description").String(),
		}
	}

	list := root.Get("activities")
	if !list.IsArray() {
		return nil, fmt.Errorf("%w: missing activities array", ErrMalformedResponse)
	}

	batch := &Batch{}
	list.ForEach(func(_, item gjson.Result) bool {
		a, err := decodeActivity(item)
		if err != nil {
			batch.Dropped++
			logger.Warn("dropping undecodable activity", "error", err, "raw", clip(item.Raw))
			return true
		}
		batch.Activities = append(batch.Activities, a)
		return true
	})
	return batch, nil
}

func decodeActivity(item gjson.Result) (Activity, error) {
	if !item.IsObject() {
		return Activity{}, fmt.Errorf("activity is %s, not an object", item.Type)
	}
	id := item.Get("activityid")
	if !id.Exists() || id.String() == "" {
		return Activity{}, fmt.Errorf("missing activityid")
	}
	ts := item.Get("time")
	if ts.Type != gjson.Number || ts.Int() <= 0 {
		return Activity{}, fmt.Errorf("activity %s: invalid time %q", id.String(), ts.Raw)
	}

	a := Activity{
		ID:          id.String(),
		ParentID:    item.Get("parentid").String(),
		Time:        ts.Int(),
		Text:        item.Get("text").String(),
		ContactID:   optionalInt(item.Get("contactid")),
		UserID:      optionalInt(item.Get("userid")),
		ContactName: item.Get("contactname").String(),
		Network:     item.Get("network").String(),
		HasChildren: item.Get("haschildren").Bool(),
		Flags:       item.Get("flags").Int(),
	}
	if a.ParentID == "0" {
		a.ParentID = ""
	}
	return a, nil
}

func optionalInt(r gjson.Result) *int64 {
	if r.Type != gjson.Number {
		return nil
	}
	n := r.Int()
	if n == 0 {
		return nil
	}
	return &n
}

func clip(s string) string {
	if len(s) <= maxLoggedRaw {
		return s
	}
	return s[:maxLoggedRaw] + "..."
}
