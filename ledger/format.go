package ledger

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/viant/kdb/digest"
)

const (
	// Version is the on-disk format version written by this package.
	Version = 1

	headerMagic     = "kdb-ledger"
	algorithmPrefix = "algorithm="
)

// Entry is one ledger line.
type Entry struct {
	Digest digest.Digest
	// Path is advisory: the file that was submitted when the digest was recorded.
	Path string
}

// Info describes a ledger file.
type Info struct {
	Path      string
	Version   int
	Algorithm string
	Entries   int
	// TornTail is set when the file ends with an incomplete line.
	TornTail bool
}

func header(algorithm string) string {
	return fmt.Sprintf("# %s v%d %s%s\n", headerMagic, Version, algorithmPrefix, algorithm)
}

// parseHeader returns the format version and algorithm of a header line.
func parseHeader(line string) (int, string, error) {
	fields := strings.Fields(line)
	if len(fields) != 4 || fields[0] != "#" || fields[1] != headerMagic {
		return 0, "", fmt.Errorf("%w: invalid header %q", ErrCorrupt, line)
	}
	version, err := strconv.Atoi(strings.TrimPrefix(fields[2], "v"))
	if err != nil || !strings.HasPrefix(fields[2], "v") {
		return 0, "", fmt.Errorf("%w: invalid version %q", ErrCorrupt, fields[2])
	}
	if version != Version {
		return 0, "", fmt.Errorf("%w: unsupported version %d", ErrCorrupt, version)
	}
	if !strings.HasPrefix(fields[3], algorithmPrefix) {
		return 0, "", fmt.Errorf("%w: missing algorithm in header", ErrCorrupt)
	}
	return version, strings.TrimPrefix(fields[3], algorithmPrefix), nil
}

// formatEntry renders one ledger line including the trailing newline.
func formatEntry(d digest.Digest, path string) string {
	if path == "" {
		return d.String() + "\n"
	}
	path = strings.NewReplacer("\n", " ", "\r", " ", "\t", " ").Replace(path)
	return d.String() + "\t" + path + "\n"
}

type parsed struct {
	info    Info
	entries []Entry
	// valid is the byte length of the well formed prefix of the file.
	valid int64
}

// parse reads a ledger stream. An empty stream yields a zero Info with Version 0.
func parse(r io.Reader) (*parsed, error) {
	result := &parsed{}
	reader := bufio.NewReaderSize(r, 64*1024)
	lineNo := 0
	for {
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		if errors.Is(err, io.EOF) {
			if line == "" {
				return result, nil
			}
			if !isTorn(line, lineNo == 0) {
				return nil, fmt.Errorf("%w: line %d: unterminated %q", ErrCorrupt, lineNo+1, truncate(line, 40))
			}
			result.info.TornTail = true
			return result, nil
		}
		lineNo++
		text := strings.TrimRight(line, "\r\n")
		if lineNo == 1 {
			version, algorithm, herr := parseHeader(text)
			if herr != nil {
				return nil, herr
			}
			result.info.Version = version
			result.info.Algorithm = algorithm
			result.valid += int64(len(line))
			continue
		}
		result.valid += int64(len(line))
		if strings.TrimSpace(text) == "" || strings.HasPrefix(text, "#") {
			continue
		}
		hexDigest, path, _ := strings.Cut(text, "\t")
		d, perr := digest.Parse(hexDigest)
		if perr != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrCorrupt, lineNo, perr)
		}
		result.entries = append(result.entries, Entry{Digest: d, Path: path})
		result.info.Entries++
	}
}

// isTorn reports whether an unterminated final line can be the start of a
// line this package writes: the header when first, an entry otherwise.
func isTorn(line string, first bool) bool {
	if first {
		prefix := "# " + headerMagic + " "
		return strings.HasPrefix(prefix, line) || strings.HasPrefix(line, prefix)
	}
	hexDigest, _, _ := strings.Cut(line, "\t")
	if len(hexDigest) > 2*digest.Size {
		return false
	}
	for _, r := range hexDigest {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return false
		}
	}
	return true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Read loads a ledger file without taking the writer lock.
func Read(path string) ([]Entry, Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Info{Path: path}, err
	}
	defer f.Close()
	p, err := parse(f)
	if err != nil {
		return nil, Info{Path: path}, fmt.Errorf("%s: %w", path, err)
	}
	p.info.Path = path
	return p.entries, p.info, nil
}

// Stat describes a ledger file without loading its entries into a set.
func Stat(path string) (Info, error) {
	_, info, err := Read(path)
	return info, err
}
