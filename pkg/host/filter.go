package host

// Filter names a class of update content. Wait states persist filters as
// plain strings, so values must stay stable across releases.
type Filter string

const (
	// FilterMessage matches any regular message update.
	FilterMessage Filter = "message"
	// FilterText matches messages carrying text.
	FilterText Filter = "message:text"
	// FilterPhoto matches messages carrying a photo.
	FilterPhoto Filter = "message:photo"
	// FilterDocument matches messages carrying an attached file.
	FilterDocument Filter = "message:document"
	// FilterVoice matches messages carrying a voice note.
	FilterVoice Filter = "message:voice"
	// FilterContact matches messages sharing a contact.
	FilterContact Filter = "message:contact"
	// FilterLocation matches messages sharing a location.
	FilterLocation Filter = "message:location"
	// FilterCallbackQuery matches button-press updates.
	FilterCallbackQuery Filter = "callback_query"
)

// Filters converts a string slice back into typed filters, for values loaded
// from persisted wait state.
func Filters(names []string) []Filter {
	if len(names) == 0 {
		return nil
	}
	out := make([]Filter, len(names))
	for i, n := range names {
		out[i] = Filter(n)
	}
	return out
}

// FilterNames converts typed filters into the plain strings stored in
// session state.
func FilterNames(filters []Filter) []string {
	if len(filters) == 0 {
		return nil
	}
	out := make([]string, len(filters))
	for i, f := range filters {
		out[i] = string(f)
	}
	return out
}
