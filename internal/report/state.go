package report

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
)

// markerPrefix identifies notes written by this tool.
const markerPrefix = "<!-- mr-conflict-detector:state "

var stateRe = regexp.MustCompile(`<!-- mr-conflict-detector:state (\{.*?\}) -->`)

// State is the machine-readable part of a posted note. It records which merge
// requests were in conflict so the next run can tell which ones got resolved.
type State struct {
	Conflicts []int `json:"conflicts"` // IIDs of the counterpart merge requests
}

// EncodeState renders the state as a hidden HTML comment.
func EncodeState(iids []int) string {
	sorted := append([]int{}, iids...)
	sort.Ints(sorted)

	data, _ := json.Marshal(State{Conflicts: sorted})
	return fmt.Sprintf("%s%s -->", markerPrefix, data)
}

// HasMarker reports whether the note body was produced by this tool.
func HasMarker(body string) bool {
	return stateRe.MatchString(body)
}

// DecodeState extracts the state embedded in a note body.
func DecodeState(body string) (State, error) {
	m := stateRe.FindStringSubmatch(body)
	if m == nil {
		return State{}, fmt.Errorf("no state marker found")
	}

	var s State
	if err := json.Unmarshal([]byte(m[1]), &s); err != nil {
		return State{}, fmt.Errorf("failed to decode state marker: %w", err)
	}
	return s, nil
}
