package hooktrace

import (
	"bufio"
	"fmt"
	"io"
	"sort"

	"github.com/tidwall/gjson"
)

// HookSummary aggregates the events of one hook.
type HookSummary struct {
	Hook   string
	Events map[string]int
	Taps   map[string]int // tap name -> invocations
	Errors []string
}

// Summary aggregates a recorded trace.
type Summary struct {
	Sessions []string
	Hooks    []*HookSummary // sorted by hook name
	Lines    int
}

// Hook returns the summary for name, or nil.
func (s *Summary) Hook(name string) *HookSummary {
	for _, h := range s.Hooks {
		if h.Hook == name {
			return h
		}
	}
	return nil
}

// Summarize reads a JSON-lines trace and aggregates it per hook.
// Blank lines are skipped; a malformed line is an error.
func Summarize(r io.Reader) (*Summary, error) {
	byHook := make(map[string]*HookSummary)
	sessions := make(map[string]struct{})
	s := &Summary{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if !gjson.ValidBytes(line) {
			return nil, fmt.Errorf("line %d: invalid JSON", lineNo)
		}
		s.Lines++

		fields := gjson.GetManyBytes(line, "hook", "event", "tap", "error", "session")
		name := fields[0].String()
		hs, ok := byHook[name]
		if !ok {
			hs = &HookSummary{
				Hook:   name,
				Events: make(map[string]int),
				Taps:   make(map[string]int),
			}
			byHook[name] = hs
		}

		event := fields[1].String()
		hs.Events[event]++
		switch event {
		case EventTap:
			hs.Taps[fields[2].String()]++
		case EventError:
			hs.Errors = append(hs.Errors, fields[3].String())
		}
		if sid := fields[4].String(); sid != "" {
			if _, seen := sessions[sid]; !seen {
				sessions[sid] = struct{}{}
				s.Sessions = append(s.Sessions, sid)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	for _, hs := range byHook {
		s.Hooks = append(s.Hooks, hs)
	}
	sort.Slice(s.Hooks, func(i, j int) bool {
		return s.Hooks[i].Hook < s.Hooks[j].Hook
	})
	return s, nil
}
