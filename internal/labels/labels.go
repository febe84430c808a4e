// Package labels maps detector class ids to human readable labels.
package labels

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Table maps class ids to labels. Unknown ids map to "".
type Table map[int]string

// Default is the COCO table used by SSD MobileNet frozen graphs.
func Default() Table {
	return Table{
		1:  "person",
		2:  "bicycle",
		3:  "car",
		4:  "motorcycle",
		5:  "airplane",
		6:  "bus",
		7:  "train",
		8:  "truck",
		9:  "boat",
		10: "traffic light",
		16: "bird",
		17: "cat",
		18: "dog",
		19: "horse",
		20: "sheep",
		21: "cow",
		44: "bottle",
		47: "cup",
		62: "chair",
		63: "couch",
		64: "potted plant",
		67: "dining table",
		72: "tv",
		73: "laptop",
		77: "cell phone",
		84: "book",
	}
}

// Label returns the label for id, or "" when the id is not in the table.
func (t Table) Label(id int) string {
	return t[id]
}

// Load reads a table from path. An empty path returns Default.
func Load(path string) (Table, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open labels file")
	}
	defer f.Close()

	t, err := Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return t, nil
}

// Parse reads one entry per line. A line is either "<id> <label>" or just
// "<label>", in which case the id is the line's position counted from 1.
// Blank lines and lines starting with '#' are ignored and do not advance the
// position.
func Parse(r io.Reader) (Table, error) {
	t := make(Table)
	scanner := bufio.NewScanner(r)
	position := 0
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		position++

		id, label := position, line
		if head, rest, found := strings.Cut(line, " "); found {
			if n, err := strconv.Atoi(head); err == nil {
				id, label = n, strings.TrimSpace(rest)
			}
		} else if _, err := strconv.Atoi(line); err == nil {
			return nil, errors.Errorf("line %d: id %q without label", lineNo, line)
		}

		if _, dup := t[id]; dup {
			return nil, errors.Errorf("line %d: duplicate id %d", lineNo, id)
		}
		t[id] = label
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read labels")
	}
	return t, nil
}
