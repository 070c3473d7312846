package orchestrator

// ActiveScene is either None or a named scene.
type ActiveScene struct {
	name string
	set  bool
}

func None() ActiveScene {
	return ActiveScene{}
}

func Named(name string) ActiveScene {
	return ActiveScene{name: name, set: true}
}

func (a ActiveScene) IsNone() bool {
	return !a.set
}

func (a ActiveScene) Name() (string, bool) {
	return a.name, a.set
}

func (a ActiveScene) Is(name string) bool {
	return a.set && a.name == name
}

func (a ActiveScene) String() string {
	if !a.set {
		return "none"
	}
	return a.name
}
