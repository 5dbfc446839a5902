package reactive

type Tracker struct {
	currentOwner *Owner // for lifecycle/cleanup tracking
}

func NewTracker(root *Owner) *Tracker {
	return &Tracker{currentOwner: root}
}

func (t *Tracker) RunWithOwner(owner *Owner, fn func()) {
	prev := t.currentOwner
	t.currentOwner = owner
	defer func() { t.currentOwner = prev }()

	fn()
}

func (t *Tracker) CurrentOwner() *Owner {
	return t.currentOwner
}
