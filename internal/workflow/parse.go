package workflow

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	fencePattern = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*\\n?(.*?)```")
	successFlag  = regexp.MustCompile(`(?i)["']?success["']?\s*:\s*["']?(true|false)\b`)
)

// extractJSON returns the JSON object embedded in a model reply: the body of
// the first code fence holding one, or the outermost braces.
func extractJSON(reply string) (string, bool) {
	for _, m := range fencePattern.FindAllStringSubmatch(reply, -1) {
		body := strings.TrimSpace(m[1])
		if strings.HasPrefix(body, "{") {
			return body, true
		}
	}

	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return reply[start : end+1], true
}

// decodeLoose unmarshals a reply's JSON object into v. Object literals with
// bare keys or single-quoted strings are repaired once before giving up.
func decodeLoose(reply string, v any) error {
	raw, ok := extractJSON(reply)
	if !ok {
		return fmt.Errorf("no JSON object in reply")
	}
	err := json.Unmarshal([]byte(raw), v)
	if err == nil {
		return nil
	}

	if rerr := json.Unmarshal([]byte(repairObject(raw)), v); rerr != nil {
		return err
	}
	return nil
}

// repairObject rewrites a JavaScript-style object literal as JSON: bare keys
// are quoted and single-quoted strings become double-quoted. A single quote
// only opens a string after one of {[:, and only closes one before one of
// }]:, or the end of input.
func repairObject(raw string) string {
	var b strings.Builder
	prev := byte(0)
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c == '"':
			end := closingDouble(raw, i+1)
			b.WriteString(raw[i : end+1])
			i = end
		case c == '\'' && strings.IndexByte("{[:,", prev) >= 0:
			end := closingSingle(raw, i+1)
			inner := strings.ReplaceAll(raw[i+1:end], `\'`, `'`)
			enc, _ := json.Marshal(inner)
			b.Write(enc)
			i = end
		case isIdentStart(c) && (prev == '{' || prev == ','):
			j := i
			for j < len(raw) && isIdentChar(raw[j]) {
				j++
			}
			if next := nextSignificant(raw, j); next < len(raw) && raw[next] == ':' {
				b.WriteString(`"` + raw[i:j] + `"`)
			} else {
				b.WriteString(raw[i:j])
			}
			i = j - 1
		default:
			b.WriteByte(c)
		}
		if c != ' ' && c != '\t' && c != '\n' && c != '\r' {
			prev = c
		}
	}
	return b.String()
}

// closingDouble returns the index of the quote ending a double-quoted string
// that starts at from, or the last index when it is unterminated.
func closingDouble(s string, from int) int {
	for j := from; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case '"':
			return j
		}
	}
	return len(s) - 1
}

func closingSingle(s string, from int) int {
	for j := from; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case '\'':
			if next := nextSignificant(s, j+1); next == len(s) || strings.IndexByte("}],:", s[next]) >= 0 {
				return j
			}
		}
	}
	return len(s) - 1
}

func nextSignificant(s string, from int) int {
	for from < len(s) && strings.IndexByte(" \t\n\r", s[from]) >= 0 {
		from++
	}
	return from
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// parseVerification reads the photo check verdict. When the object cannot be
// decoded the success flag alone is still honoured.
func parseVerification(reply string) (*Verification, error) {
	var raw map[string]any
	if err := decodeLoose(reply, &raw); err != nil {
		m := successFlag.FindStringSubmatch(reply)
		if m == nil {
			return nil, err
		}
		return &Verification{Success: strings.EqualFold(m[1], "true")}, nil
	}
	success, ok := raw["success"].(bool)
	if !ok {
		s, isStr := raw["success"].(string)
		if !isStr {
			return nil, fmt.Errorf("verification reply has no success flag")
		}
		success = strings.EqualFold(strings.TrimSpace(s), "true")
	}
	msg, _ := raw["message"].(string)
	return &Verification{Success: success, Message: msg}, nil
}

func parseRatings(reply string) (*Ratings, error) {
	var raw map[string]any
	if err := decodeLoose(reply, &raw); err != nil {
		return nil, err
	}

	r := &Ratings{}
	for key, dst := range map[string]*float64{
		"hydration":       &r.Hydration,
		"oilBalance":      &r.OilBalance,
		"tone":            &r.Tone,
		"barrierStrength": &r.BarrierStrength,
		"sensitivity":     &r.Sensitivity,
	} {
		v, ok := number(raw[key])
		if !ok {
			return nil, fmt.Errorf("rating %q missing or not a number", key)
		}
		*dst = v
	}
	return r, nil
}

func parseProducts(reply string) ([]Product, error) {
	var raw struct {
		Products []map[string]any `json:"products"`
	}
	if err := decodeLoose(reply, &raw); err != nil {
		return nil, err
	}
	if raw.Products == nil {
		return nil, fmt.Errorf("reply has no products array")
	}

	products := make([]Product, 0, len(raw.Products))
	for _, p := range raw.Products {
		prod := Product{
			Title:     text(p["title"]),
			Source:    text(p["source"]),
			Link:      text(p["link"]),
			Price:     text(p["price"]),
			ImageURL:  text(p["imageUrl"]),
			ProductID: text(p["productId"]),
		}
		prod.Rating, _ = number(p["rating"])
		count, _ := number(p["ratingCount"])
		prod.RatingCount = int(count)
		pos, _ := number(p["position"])
		prod.Position = int(pos)
		if prod.Title == "" {
			continue
		}
		products = append(products, prod)
	}
	return products, nil
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func text(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	}
	return ""
}
