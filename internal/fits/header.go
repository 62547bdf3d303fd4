package fits

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	blockSize = 2880
	cardSize  = 80
)

// Card is one header keyword record. Value is a string, bool, int64 or
// float64 for value cards and nil for commentary cards (COMMENT, HISTORY,
// blank keywords), whose text is held in Comment.
type Card struct {
	Key     string
	Value   any
	Comment string
}

// IsCommentary reports whether the card carries free text instead of a value.
func (c Card) IsCommentary() bool {
	return c.Value == nil
}

// Header is an ordered list of cards, without the END card.
type Header struct {
	Cards []Card
}

// Get returns the first card with the given keyword.
func (h *Header) Get(key string) (Card, bool) {
	for _, c := range h.Cards {
		if c.Key == key {
			return c, true
		}
	}
	return Card{}, false
}

// Int returns an integer keyword value.
func (h *Header) Int(key string) (int64, bool) {
	c, ok := h.Get(key)
	if !ok {
		return 0, false
	}
	switch v := c.Value.(type) {
	case int64:
		return v, true
	case float64:
		if v == float64(int64(v)) {
			return int64(v), true
		}
	}
	return 0, false
}

// Float returns a numeric keyword value.
func (h *Header) Float(key string) (float64, bool) {
	c, ok := h.Get(key)
	if !ok {
		return 0, false
	}
	switch v := c.Value.(type) {
	case int64:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

// parseCard decodes one 80-character card image.
func parseCard(image string) (Card, error) {
	key := strings.TrimRight(image[:8], " ")
	rest := image[8:]
	if key == "COMMENT" || key == "HISTORY" || key == "" || !strings.HasPrefix(rest, "= ") {
		return Card{Key: key, Comment: strings.TrimRight(rest, " ")}, nil
	}
	value, comment, err := splitValue(rest[2:])
	if err != nil {
		return Card{}, fmt.Errorf("keyword %s: %w", key, err)
	}
	return Card{Key: key, Value: value, Comment: comment}, nil
}

// splitValue parses the value field and the optional "/ comment".
func splitValue(field string) (any, string, error) {
	s := strings.TrimLeft(field, " ")
	if strings.HasPrefix(s, "'") {
		var b strings.Builder
		i := 1
		for {
			if i >= len(s) {
				return nil, "", fmt.Errorf("unterminated string %q", field)
			}
			if s[i] == '\'' {
				if i+1 < len(s) && s[i+1] == '\'' {
					b.WriteByte('\'')
					i += 2
					continue
				}
				break
			}
			b.WriteByte(s[i])
			i++
		}
		return strings.TrimRight(b.String(), " "), commentAfter(s[i+1:]), nil
	}

	raw, comment := s, ""
	if slash := strings.IndexByte(s, '/'); slash >= 0 {
		raw, comment = s[:slash], commentAfter(s[slash:])
	}
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return "", comment, nil
	case raw == "T":
		return true, comment, nil
	case raw == "F":
		return false, comment, nil
	}
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return v, comment, nil
	}
	if v, err := strconv.ParseFloat(strings.NewReplacer("D", "E", "d", "e").Replace(raw), 64); err == nil {
		return v, comment, nil
	}
	// Complex and other values are kept verbatim.
	return raw, comment, nil
}

func commentAfter(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "/")
	return strings.TrimSpace(s)
}

// joinContinued merges long-string CONTINUE cards into the string card they
// extend.
func joinContinued(cards []Card) []Card {
	out := cards[:0]
	for _, c := range cards {
		if c.Key == "CONTINUE" && len(out) > 0 {
			prev := &out[len(out)-1]
			if s, ok := prev.Value.(string); ok && strings.HasSuffix(s, "&") {
				v, comment, err := splitValue(c.Comment)
				if cont, ok := v.(string); err == nil && ok {
					prev.Value = strings.TrimSuffix(s, "&") + cont
					if comment != "" {
						prev.Comment = strings.TrimSpace(prev.Comment + " " + comment)
					}
					continue
				}
			}
		}
		out = append(out, c)
	}
	return out
}

// formatCard renders a card image of exactly 80 characters.
func formatCard(c Card) (string, error) {
	if len(c.Key) > 8 {
		return "", fmt.Errorf("keyword %q longer than 8 characters", c.Key)
	}
	var s string
	switch v := c.Value.(type) {
	case nil:
		s = fmt.Sprintf("%-8s%s", c.Key, c.Comment)
	case string:
		quoted := "'" + strings.ReplaceAll(v, "'", "''")
		if len(v) < 8 {
			quoted += strings.Repeat(" ", 8-len(v))
		}
		s = fmt.Sprintf("%-8s= %-20s", c.Key, quoted+"'")
	case bool:
		t := "F"
		if v {
			t = "T"
		}
		s = fmt.Sprintf("%-8s= %20s", c.Key, t)
	case int64:
		s = fmt.Sprintf("%-8s= %20d", c.Key, v)
	case int:
		s = fmt.Sprintf("%-8s= %20d", c.Key, v)
	case float64:
		t := strconv.FormatFloat(v, 'G', -1, 64)
		if !strings.ContainsAny(t, ".EN") {
			t += ".0"
		}
		s = fmt.Sprintf("%-8s= %20s", c.Key, t)
	default:
		return "", fmt.Errorf("keyword %s: unsupported value type %T", c.Key, c.Value)
	}
	if c.Value != nil && c.Comment != "" {
		s += " / " + c.Comment
	}
	if len(s) > cardSize {
		return "", fmt.Errorf("keyword %s: card longer than %d characters", c.Key, cardSize)
	}
	return s + strings.Repeat(" ", cardSize-len(s)), nil
}
