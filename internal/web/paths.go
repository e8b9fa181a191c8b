package web

import (
	"net/url"
	"strings"

	"mqtt-monitor/backend/internal/telemetry/timerange"
)

// HostURL returns the host detail path.
func HostURL(host string) string {
	return "/host/" + url.PathEscape(host) + "/"
}

// TopicPath escapes each "/"-separated segment of topic so the separators stay literal.
func TopicPath(topic string) string {
	segs := strings.Split(topic, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}

// FieldsURL returns the field picker path for (host, topic).
func FieldsURL(host, topic string) string {
	return HostURL(host) + "topic/" + TopicPath(topic) + "/fields/"
}

// ChartURL returns the chart page path, with ?range= when rng is not the default.
func ChartURL(host, topic, field, rng string) string {
	return fieldPath(host, topic, field) + rangeQuery(rng)
}

// DataURL returns the JSON chart data path.
func DataURL(host, topic, field, rng string) string {
	return "/api" + fieldPath(host, topic, field) + "data/" + rangeQuery(rng)
}

// ExportURL returns the CSV export path.
func ExportURL(host, topic, field, rng string) string {
	return "/export" + fieldPath(host, topic, field) + rangeQuery(rng)
}

func fieldPath(host, topic, field string) string {
	return HostURL(host) + "topic/" + TopicPath(topic) + "/field/" + url.PathEscape(field) + "/"
}

func rangeQuery(rng string) string {
	if rng == "" {
		return ""
	}
	return "?range=" + url.QueryEscape(timerange.Normalize(rng))
}
