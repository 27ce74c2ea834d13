// Package ingest reads neuron skeletons from SWC files and CATMAID
// compact-skeleton JSON exports.
package ingest

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/chrissnell/electrotonic/internal/skeleton"
)

// ReadSWC parses an SWC morphology. Columns are
// "id type x y z radius parent"; a parent of -1 marks the root.
func ReadSWC(r io.Reader, name string) (*skeleton.Neuron, error) {
	var nodes []skeleton.Treenode

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		fields := strings.Fields(text)
		if len(fields) < 7 {
			return nil, fmt.Errorf("swc line %d: expected 7 columns, got %d", line, len(fields))
		}

		id, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("swc line %d: bad id: %w", line, err)
		}
		parent, err := strconv.ParseInt(fields[6], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("swc line %d: bad parent: %w", line, err)
		}
		if parent < 0 {
			parent = 0
		}

		var coords [4]float64
		for i := range coords {
			coords[i], err = strconv.ParseFloat(fields[i+2], 64)
			if err != nil {
				return nil, fmt.Errorf("swc line %d: bad column %d: %w", line, i+3, err)
			}
			if math.IsNaN(coords[i]) || math.IsInf(coords[i], 0) {
				return nil, fmt.Errorf("swc line %d: column %d is not finite: %v", line, i+3, coords[i])
			}
		}

		nodes = append(nodes, skeleton.Treenode{
			ID:       skeleton.NodeID(id),
			ParentID: skeleton.NodeID(parent),
			X:        coords[0],
			Y:        coords[1],
			Z:        coords[2],
			Radius:   coords[3],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading swc: %w", err)
	}

	return skeleton.New(0, name, nodes, nil)
}
