package backend

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/stwalsh4118/lineup/internal/models"
)

var (
	reTvgName = regexp.MustCompile(`tvg-name="([^"]*)"`)
	reTvgID   = regexp.MustCompile(`tvg-id="([^"]*)"`)
	reTvgLogo = regexp.MustCompile(`tvg-logo="([^"]*)"`)
	reTvgChno = regexp.MustCompile(`tvg-chno="([^"]*)"`)
	reGroup   = regexp.MustCompile(`group-title="([^"]*)"`)
	reRadio   = regexp.MustCompile(`radio="([^"]*)"`)
)

// groupSeparator splits a group-title listing more than one group
const groupSeparator = ";"

// ParseM3U reads an M3U playlist and returns its channels in file order.
// Entries without a name are skipped.
func ParseM3U(r io.Reader) ([]SourceChannel, error) {
	var channels []SourceChannel
	scanner := bufio.NewScanner(r)
	// Some playlists carry very long EXTINF lines
	const maxSize = 1024 * 1024
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, maxSize)

	var extinfLine string
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(strings.ToUpper(trimmed), "#EXTINF"):
			// a previous EXTINF without URL is dropped
			extinfLine = trimmed
		case trimmed == "" || strings.HasPrefix(trimmed, "#"):
			continue
		default:
			if extinfLine == "" {
				continue
			}
			ch, ok := channelFromEXTINF(extinfLine)
			extinfLine = ""
			if !ok {
				continue
			}
			ch.Order = len(channels) + 1
			channels = append(channels, ch)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read playlist: %w", err)
	}
	return channels, nil
}

func channelFromEXTINF(extinf string) (SourceChannel, bool) {
	name := matchFirst(reTvgName, extinf)
	if name == "" {
		name = displayName(extinf)
	}
	tvgID := matchFirst(reTvgID, extinf)
	if name == "" {
		name = tvgID
	}
	if name == "" {
		return SourceChannel{}, false
	}

	ch := SourceChannel{
		UniqueID: uniqueID(tvgID, name),
		Name:     name,
		IconPath: matchFirst(reTvgLogo, extinf),
		Radio:    strings.EqualFold(matchFirst(reRadio, extinf), "true"),
	}
	if chno := matchFirst(reTvgChno, extinf); chno != "" {
		if number, err := models.ParseChannelNumber(chno); err == nil {
			ch.Number = number
		}
	}
	for _, g := range strings.Split(matchFirst(reGroup, extinf), groupSeparator) {
		if g = strings.TrimSpace(g); g != "" {
			ch.Groups = append(ch.Groups, g)
		}
	}
	return ch, true
}

// uniqueID uses a numeric tvg-id as is and hashes anything else so the
// same playlist entry keeps its id across reloads
func uniqueID(tvgID, name string) int {
	if id, err := strconv.Atoi(tvgID); err == nil && id > 0 {
		return id
	}
	key := tvgID
	if key == "" {
		key = name
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() & 0x7fffffff)
}

// displayName returns the text after the first comma that follows the attributes
func displayName(extinf string) string {
	rest := extinf
	if i := strings.LastIndex(rest, `"`); i >= 0 {
		rest = rest[i+1:]
	}
	_, name, found := strings.Cut(rest, ",")
	if !found {
		return ""
	}
	return strings.TrimSpace(name)
}

func matchFirst(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// M3USource reads channels from an M3U playlist on disk or over http(s)
type M3USource struct {
	location string
	client   *http.Client
}

// NewM3USource creates a source for the playlist at location
func NewM3USource(location string, timeout time.Duration) *M3USource {
	return &M3USource{
		location: location,
		client:   &http.Client{Timeout: timeout},
	}
}

// Channels loads and parses the playlist
func (s *M3USource) Channels(ctx context.Context) ([]SourceChannel, error) {
	if isRemote(s.location) {
		return s.fetch(ctx)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.location)
	if err != nil {
		return nil, fmt.Errorf("failed to open playlist: %w", err)
	}
	defer f.Close()
	return ParseM3U(f)
}

func (s *M3USource) fetch(ctx context.Context) ([]SourceChannel, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.location, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create playlist request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch playlist: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch playlist: HTTP %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read playlist body: %w", err)
	}
	return ParseM3U(bytes.NewReader(body))
}

func isRemote(location string) bool {
	lower := strings.ToLower(location)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
