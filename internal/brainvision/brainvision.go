// Package brainvision reads and writes BrainVision Core 1.0 recordings.
//
// A recording is a triplet of files sharing one stem: a text header
// (.vhdr), a text marker file (.vmrk) and a binary data file (.eeg).
// The reader accepts multiplexed and vectorized layouts in IEEE_FLOAT_32
// or INT_16; the writer always produces multiplexed IEEE_FLOAT_32.
package brainvision

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	headerMagic = "Brain Vision Data Exchange Header File"
	markerMagic = "Brain Vision Data Exchange Marker File"
)

// header holds the fields of a .vhdr file that the reader needs.
type header struct {
	DataFile     string
	MarkerFile   string
	Orientation  string // MULTIPLEXED or VECTORIZED
	BinaryFormat string // IEEE_FLOAT_32 or INT_16
	SampleRate   float64
	Channels     []headerChannel
}

type headerChannel struct {
	Name       string
	Resolution float64
	Unit       string
}

// marker is one Mk<N> line from a .vmrk file.
type marker struct {
	Type        string
	Description string
	Position    int // 1-based sample index
	Date        time.Time
}

// iniSection is a parsed [Section] with its key=value lines in file order.
type iniSection struct {
	name string
	keys []iniKey
}

type iniKey struct {
	key   string
	value string
}

// parseINI splits a BrainVision text file into sections. The first line
// must carry the given magic string. Lines starting with ';' are comments.
func parseINI(path, magic string) ([]iniSection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !scanner.Scan() {
		return nil, fmt.Errorf("%s: empty file", path)
	}
	first := strings.TrimPrefix(strings.TrimSpace(scanner.Text()), "\ufeff")
	if !strings.HasPrefix(first, magic) {
		return nil, fmt.Errorf("%s: not a BrainVision file (got %q)", path, first)
	}

	var sections []iniSection
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			sections = append(sections, iniSection{name: line[1 : len(line)-1]})
			continue
		}
		if len(sections) == 0 {
			continue
		}
		eq := strings.Index(line, "=")
		if eq < 0 {
			// Free text, e.g. the [Comment] section.
			continue
		}
		s := &sections[len(sections)-1]
		s.keys = append(s.keys, iniKey{
			key:   strings.TrimSpace(line[:eq]),
			value: strings.TrimSpace(line[eq+1:]),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return sections, nil
}

func findSection(sections []iniSection, name string) *iniSection {
	for i := range sections {
		if strings.EqualFold(sections[i].name, name) {
			return &sections[i]
		}
	}
	return nil
}

func (s *iniSection) get(key string) (string, bool) {
	for _, kv := range s.keys {
		if strings.EqualFold(kv.key, key) {
			return kv.value, true
		}
	}
	return "", false
}

// parseHeader reads a .vhdr file.
func parseHeader(path string) (*header, error) {
	sections, err := parseINI(path, headerMagic)
	if err != nil {
		return nil, err
	}

	common := findSection(sections, "Common Infos")
	if common == nil {
		return nil, fmt.Errorf("%s: missing [Common Infos] section", path)
	}

	h := &header{}
	h.DataFile, _ = common.get("DataFile")
	h.MarkerFile, _ = common.get("MarkerFile")
	if h.DataFile == "" {
		return nil, fmt.Errorf("%s: header names no DataFile", path)
	}

	if format, ok := common.get("DataFormat"); ok && !strings.EqualFold(format, "BINARY") {
		return nil, fmt.Errorf("%s: unsupported data format %q", path, format)
	}
	h.Orientation, _ = common.get("DataOrientation")
	if h.Orientation == "" {
		h.Orientation = "MULTIPLEXED"
	}
	h.Orientation = strings.ToUpper(h.Orientation)
	if h.Orientation != "MULTIPLEXED" && h.Orientation != "VECTORIZED" {
		return nil, fmt.Errorf("%s: unsupported data orientation %q", path, h.Orientation)
	}

	nchanStr, ok := common.get("NumberOfChannels")
	if !ok {
		return nil, fmt.Errorf("%s: header names no NumberOfChannels", path)
	}
	nchan, err := strconv.Atoi(nchanStr)
	if err != nil || nchan <= 0 {
		return nil, fmt.Errorf("%s: bad NumberOfChannels %q", path, nchanStr)
	}

	intervalStr, ok := common.get("SamplingInterval")
	if !ok {
		return nil, fmt.Errorf("%s: header names no SamplingInterval", path)
	}
	interval, err := strconv.ParseFloat(intervalStr, 64)
	if err != nil || interval <= 0 {
		return nil, fmt.Errorf("%s: bad SamplingInterval %q", path, intervalStr)
	}
	// The header stores the interval in microseconds.
	h.SampleRate = 1e6 / interval

	binInfos := findSection(sections, "Binary Infos")
	if binInfos == nil {
		return nil, fmt.Errorf("%s: missing [Binary Infos] section", path)
	}
	h.BinaryFormat, _ = binInfos.get("BinaryFormat")
	h.BinaryFormat = strings.ToUpper(h.BinaryFormat)
	if h.BinaryFormat != "IEEE_FLOAT_32" && h.BinaryFormat != "INT_16" {
		return nil, fmt.Errorf("%s: unsupported binary format %q", path, h.BinaryFormat)
	}

	chanInfos := findSection(sections, "Channel Infos")
	if chanInfos == nil {
		return nil, fmt.Errorf("%s: missing [Channel Infos] section", path)
	}
	h.Channels = make([]headerChannel, nchan)
	seen := 0
	for _, kv := range chanInfos.keys {
		if !strings.HasPrefix(kv.key, "Ch") {
			continue
		}
		idx, err := strconv.Atoi(kv.key[2:])
		if err != nil || idx < 1 || idx > nchan {
			return nil, fmt.Errorf("%s: bad channel key %q", path, kv.key)
		}
		ch, err := parseChannelLine(kv.value)
		if err != nil {
			return nil, fmt.Errorf("%s: channel %s: %w", path, kv.key, err)
		}
		h.Channels[idx-1] = ch
		seen++
	}
	if seen != nchan {
		return nil, fmt.Errorf("%s: header declares %d channels but defines %d", path, nchan, seen)
	}
	return h, nil
}

// parseChannelLine decodes "Name,Reference,Resolution,Unit". Commas inside
// the name are escaped as "\1" per the format specification.
func parseChannelLine(value string) (headerChannel, error) {
	parts := strings.Split(value, ",")
	if len(parts) < 1 || parts[0] == "" {
		return headerChannel{}, fmt.Errorf("empty channel definition")
	}
	ch := headerChannel{
		Name:       strings.ReplaceAll(parts[0], `\1`, ","),
		Resolution: 1,
		Unit:       "µV",
	}
	if len(parts) >= 3 && parts[2] != "" {
		res, err := strconv.ParseFloat(parts[2], 64)
		if err != nil || res <= 0 {
			return headerChannel{}, fmt.Errorf("bad resolution %q", parts[2])
		}
		ch.Resolution = res
	}
	if len(parts) >= 4 && parts[3] != "" {
		ch.Unit = parts[3]
	}
	return ch, nil
}

// parseMarkers reads a .vmrk file. A missing marker file is not an error;
// the recording simply has no events.
func parseMarkers(path string) ([]marker, error) {
	sections, err := parseINI(path, markerMagic)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	infos := findSection(sections, "Marker Infos")
	if infos == nil {
		return nil, nil
	}

	var markers []marker
	for _, kv := range infos.keys {
		if !strings.HasPrefix(kv.key, "Mk") {
			continue
		}
		parts := strings.Split(kv.value, ",")
		if len(parts) < 5 {
			return nil, fmt.Errorf("%s: malformed marker %s=%q", path, kv.key, kv.value)
		}
		pos, err := strconv.Atoi(parts[2])
		if err != nil || pos < 1 {
			return nil, fmt.Errorf("%s: marker %s has bad position %q", path, kv.key, parts[2])
		}
		m := marker{
			Type:        parts[0],
			Description: strings.ReplaceAll(parts[1], `\1`, ","),
			Position:    pos,
		}
		if len(parts) >= 6 && parts[5] != "" {
			m.Date = parseMarkerDate(parts[5])
		}
		markers = append(markers, m)
	}
	return markers, nil
}

// parseMarkerDate decodes the 20-digit New Segment timestamp
// (yyyymmddhhmmssuuuuuu). All zeros means the time is unknown.
func parseMarkerDate(s string) time.Time {
	if len(s) != 20 || strings.Trim(s, "0") == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation("20060102150405", s[:14], time.Local)
	if err != nil {
		return time.Time{}
	}
	micro, err := strconv.Atoi(s[14:])
	if err != nil {
		return t
	}
	return t.Add(time.Duration(micro) * time.Microsecond)
}

// formatMarkerDate is the inverse of parseMarkerDate.
func formatMarkerDate(t time.Time) string {
	if t.IsZero() {
		return "00000000000000000000"
	}
	return t.Format("20060102150405") + fmt.Sprintf("%06d", t.Nanosecond()/1000)
}
