package scene

const clockLayout = "2006-01-02 15:04:05"

// IdleScene shows the local date and time.
type IdleScene struct {
	base
	res Resources
}

func NewIdle(res Resources) *IdleScene {
	return &IdleScene{base: base{name: Idle}, res: res}
}

func (s *IdleScene) Lines() []string {
	return []string{s.res.Accent.Render(s.res.now().Local().Format(clockLayout))}
}

func (s *IdleScene) Render() error {
	return s.present(s.Lines())
}
