package handler

import (
	"net/url"
	"strings"
)

const (
	fieldsSuffix = "/fields/"
	fieldMarker  = "/field/"
	dataTrailer  = "data/"
)

// parseFieldsTail extracts the topic from "<topic>/fields/".
func parseFieldsTail(tail string) (topic string, ok bool) {
	raw, ok := strings.CutSuffix(tail, fieldsSuffix)
	if !ok || raw == "" {
		return "", false
	}
	topic, err := url.PathUnescape(raw)
	if err != nil {
		return "", false
	}
	return topic, true
}

// parseFieldTail extracts topic and field from "<topic>/field/<field>/" followed by trailer.
// The topic may itself contain "/"; the last "/field/" marker separates it from the field.
func parseFieldTail(tail, trailer string) (topic, field string, ok bool) {
	rest, ok := strings.CutSuffix(tail, "/"+trailer)
	if !ok {
		return "", "", false
	}
	i := strings.LastIndex(rest, fieldMarker)
	if i <= 0 {
		return "", "", false
	}
	rawTopic, rawField := rest[:i], rest[i+len(fieldMarker):]
	if rawField == "" || strings.Contains(rawField, "/") {
		return "", "", false
	}
	topic, err := url.PathUnescape(rawTopic)
	if err != nil {
		return "", "", false
	}
	field, err = url.PathUnescape(rawField)
	if err != nil {
		return "", "", false
	}
	return topic, field, true
}
