package controller

import "github.com/naveenspark/todo/pkg/domain"

// Placeholder texts shown in place of the list.
const (
	PlaceholderLogin      = "Please login to see your todos."
	PlaceholderLoggedOut  = "Logged out. Please login to see your todos."
	PlaceholderEmpty      = "No todos yet."
	PlaceholderNoMatch    = "No todos match the filter."
	PlaceholderLoadFailed = "Failed to load todos."
)

// Completion control labels.
const (
	ControlComplete  = "Complete"
	ControlCompleted = "Completed"
)

// Item is one rendered row: the todo plus the state of its completion control.
type Item struct {
	Todo    domain.Todo
	Control string
	// Enabled is false for todos that are already completed.
	Enabled bool
}

// ListState is what the list area shows: either a placeholder or items.
type ListState struct {
	Placeholder string
	Items       []Item
	// Total is the unfiltered todo count, valid when TotalKnown is set.
	Total      int64
	TotalKnown bool
}

func newListState(todos []domain.Todo, filtered bool) *ListState {
	if len(todos) == 0 {
		if filtered {
			return &ListState{Placeholder: PlaceholderNoMatch}
		}
		return &ListState{Placeholder: PlaceholderEmpty}
	}
	items := make([]Item, 0, len(todos))
	for _, td := range todos {
		items = append(items, newItem(td))
	}
	return &ListState{Items: items}
}

func newItem(td domain.Todo) Item {
	if td.Completed {
		return Item{Todo: td, Control: ControlCompleted, Enabled: false}
	}
	return Item{Todo: td, Control: ControlComplete, Enabled: true}
}

func placeholder(text string) *ListState {
	return &ListState{Placeholder: text}
}

// Done counts completed items.
func (l *ListState) Done() int {
	n := 0
	for _, it := range l.Items {
		if it.Todo.Completed {
			n++
		}
	}
	return n
}
