package patch

import (
	"strconv"
	"strings"
	"sync"
)

func textSource(lines ...string) *MemorySource {
	content := strings.Join(lines, "\n")
	if len(lines) > 0 {
		content += "\n"
	}
	return NewMemorySource([]byte(content), "")
}

func numbered(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "l" + strconv.Itoa(i+1)
	}
	return out
}

func changeDiff(path string, hunks ...Hunk) FileDiff {
	return FileDiff{OldPath: path, NewPath: path, Type: Change, Hunks: hunks}
}

// recordingProgress cancels once IsCanceled has been polled cancelAfter
// times; zero never cancels.
type recordingProgress struct {
	mu          sync.Mutex
	tasks       []string
	subTasks    []string
	worked      int
	polls       int
	cancelAfter int
}

func (p *recordingProgress) BeginTask(name string, _ int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tasks = append(p.tasks, name)
}

func (p *recordingProgress) Worked(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.worked += n
}

func (p *recordingProgress) SubTask(label string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subTasks = append(p.subTasks, label)
}

func (p *recordingProgress) IsCanceled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.polls++
	return p.cancelAfter > 0 && p.polls >= p.cancelAfter
}
