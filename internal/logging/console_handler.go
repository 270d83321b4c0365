package logging

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// maxInfoFields caps the number of attributes printed under an INFO line.
const maxInfoFields = 8

// infoHiddenKeys never render under INFO lines; they stay available in JSON
// output and DEBUG lines.
var infoHiddenKeys = map[string]struct{}{
	FieldCorrelationID: {},
	FieldConnID:        {},
	FieldEventType:     {},
}

type prettyHandler struct {
	mu        *sync.Mutex
	writer    io.Writer
	level     slog.Leveler
	attrs     []slog.Attr
	groups    []string
	addSource bool
	infoCache map[string]map[string]string
}

func newPrettyHandler(w io.Writer, lvl slog.Leveler, addSource bool) slog.Handler {
	return &prettyHandler{
		mu:        &sync.Mutex{},
		writer:    w,
		level:     lvl,
		addSource: addSource,
		infoCache: make(map[string]map[string]string),
	}
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *prettyHandler) Handle(_ context.Context, record slog.Record) error {
	if record.Level < h.level.Level() {
		return nil
	}

	timestamp := record.Time
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	kvs := make([]kv, 0, record.NumAttrs()+len(h.attrs))
	flattenAttrs(&kvs, h.groups, h.attrs)
	record.Attrs(func(attr slog.Attr) bool {
		flattenAttr(&kvs, h.groups, attr)
		return true
	})
	kvs = dedupeKVsByKey(kvs)

	var hdr header
	rest := make([]kv, 0, len(kvs))
	for _, kv := range kvs {
		switch kv.key {
		case FieldComponent:
			hdr.component = attrString(kv.value)
			continue
		case FieldLandingID:
			hdr.landingID = attrString(kv.value)
		case FieldStage:
			hdr.stage = attrString(kv.value)
		}
		rest = append(rest, kv)
	}

	hdr.message = strings.TrimSpace(record.Message)
	if hdr.message == "" {
		hdr.message = "(no message)"
	}

	var buf bytes.Buffer
	buf.Grow(256 + len(rest)*32)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.writeHeader(&buf, timestamp, record.Level, hdr, record.Source())
	if record.Level < slog.LevelInfo {
		h.writeDebugFields(&buf, rest)
	} else {
		h.writeInfoFields(&buf, record.Level, hdr, rest)
	}
	_, err := h.writer.Write(buf.Bytes())
	return err
}

type header struct {
	component string
	landingID string
	stage     string
	message   string
}

func (hdr header) summaryKey() string {
	if hdr.landingID == "" && hdr.component == "" {
		return ""
	}
	return hdr.component + "|" + hdr.landingID + "|" + hdr.stage
}

func (h *prettyHandler) writeHeader(buf *bytes.Buffer, ts time.Time, level slog.Level, hdr header, src *slog.Source) {
	buf.WriteString(formatTimestamp(ts))
	buf.WriteByte(' ')
	buf.WriteString(levelLabel(level))
	if hdr.component != "" {
		buf.WriteString(" [")
		buf.WriteString(hdr.component)
		buf.WriteByte(']')
	}
	switch {
	case hdr.landingID != "" && hdr.stage != "":
		buf.WriteString(" Landing " + hdr.landingID + " (" + hdr.stage + ")")
	case hdr.landingID != "":
		buf.WriteString(" Landing " + hdr.landingID)
	case hdr.stage != "":
		buf.WriteString(" " + hdr.stage)
	}
	buf.WriteString(" - ")
	buf.WriteString(hdr.message)
	if h.addSource && src != nil {
		buf.WriteString(" [")
		buf.WriteString(filepath.Base(src.File))
		buf.WriteByte(':')
		buf.WriteString(strconv.Itoa(src.Line))
		buf.WriteByte(']')
	}
	buf.WriteByte('\n')
}

func (h *prettyHandler) writeInfoFields(buf *bytes.Buffer, level slog.Level, hdr header, attrs []kv) {
	fields := make([]kv, 0, len(attrs))
	for _, attr := range attrs {
		if attr.key == FieldLandingID || attr.key == FieldStage {
			continue
		}
		if _, hidden := infoHiddenKeys[attr.key]; hidden && level < slog.LevelWarn {
			continue
		}
		fields = append(fields, attr)
	}
	fields = h.filterRepeatedInfo(hdr.summaryKey(), fields, level)

	hidden := 0
	if len(fields) > maxInfoFields {
		hidden = len(fields) - maxInfoFields
		fields = fields[:maxInfoFields]
	}
	for _, field := range fields {
		buf.WriteString("    - ")
		buf.WriteString(field.key)
		buf.WriteString(": ")
		buf.WriteString(formatValue(field.value))
		buf.WriteByte('\n')
	}
	if hidden > 0 {
		buf.WriteString("    + ")
		buf.WriteString(strconv.Itoa(hidden))
		buf.WriteString(" more field")
		if hidden != 1 {
			buf.WriteByte('s')
		}
		buf.WriteString(" hidden\n")
	}
}

func (h *prettyHandler) writeDebugFields(buf *bytes.Buffer, attrs []kv) {
	for _, kv := range attrs {
		buf.WriteString("    ")
		buf.WriteString(kv.key)
		buf.WriteString(": ")
		buf.WriteString(formatValue(kv.value))
		buf.WriteByte('\n')
	}
}

// filterRepeatedInfo drops INFO fields whose value has not changed since the
// previous line for the same landing and stage. WARN and above always print
// every field but still refresh the cache.
func (h *prettyHandler) filterRepeatedInfo(key string, fields []kv, level slog.Level) []kv {
	if key == "" || len(fields) == 0 {
		return fields
	}
	cache, ok := h.infoCache[key]
	if !ok {
		cache = make(map[string]string)
		h.infoCache[key] = cache
	}
	filtered := make([]kv, 0, len(fields))
	for _, field := range fields {
		value := formatValue(field.value)
		if prev, seen := cache[field.key]; seen && prev == value && level <= slog.LevelInfo {
			continue
		}
		cache[field.key] = value
		filtered = append(filtered, field)
	}
	return filtered
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := h.clone()
	clone.attrs = append(clone.attrs, attrs...)
	return clone
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	clone := h.clone()
	clone.groups = append(clone.groups, name)
	return clone
}

func (h *prettyHandler) clone() *prettyHandler {
	clone := &prettyHandler{
		mu:        h.mu,
		writer:    h.writer,
		level:     h.level,
		addSource: h.addSource,
		infoCache: h.infoCache,
	}
	if len(h.attrs) > 0 {
		clone.attrs = make([]slog.Attr, len(h.attrs))
		copy(clone.attrs, h.attrs)
	}
	if len(h.groups) > 0 {
		clone.groups = make([]string, len(h.groups))
		copy(clone.groups, h.groups)
	}
	return clone
}

type kv struct {
	key   string
	value slog.Value
}

func dedupeKVsByKey(attrs []kv) []kv {
	if len(attrs) < 2 {
		return attrs
	}
	positions := make(map[string]int, len(attrs))
	deduped := make([]kv, 0, len(attrs))
	for _, attr := range attrs {
		if attr.key == "" {
			continue
		}
		if pos, ok := positions[attr.key]; ok {
			deduped[pos].value = attr.value
			continue
		}
		positions[attr.key] = len(deduped)
		deduped = append(deduped, attr)
	}
	return deduped
}

func flattenAttrs(dst *[]kv, prefix []string, attrs []slog.Attr) {
	for _, attr := range attrs {
		flattenAttr(dst, prefix, attr)
	}
}

func flattenAttr(dst *[]kv, prefix []string, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	attr.Value = attr.Value.Resolve()
	if attr.Value.Kind() == slog.KindGroup {
		nextPrefix := prefix
		if attr.Key != "" {
			nextPrefix = append(append([]string{}, prefix...), attr.Key)
		}
		flattenAttrs(dst, nextPrefix, attr.Value.Group())
		return
	}
	key := attr.Key
	if len(prefix) > 0 {
		if key != "" {
			key = strings.Join(prefix, ".") + "." + key
		} else {
			key = strings.Join(prefix, ".")
		}
	}
	*dst = append(*dst, kv{key: key, value: attr.Value})
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
