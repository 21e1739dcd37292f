package gamelog

// TeamDescription describes one team over the whole match.
type TeamDescription struct {
	Name   string
	Color  string
	Side   Side
	Agents []*AgentDescription // Ordered by first appearance
}

// NewTeamDescription creates a team with the given name and side.
func NewTeamDescription(name, color string, side Side) *TeamDescription {
	return &TeamDescription{Name: name, Color: color, Side: side}
}

// Agent returns the description for the given player number, creating it on
// first use.
func (t *TeamDescription) Agent(number int) *AgentDescription {
	for _, a := range t.Agents {
		if a.Number == number {
			return a
		}
	}
	a := &AgentDescription{Number: number, LastTypeIndex: -1}
	t.Agents = append(t.Agents, a)
	return a
}

// FindAgent returns the description for the given player number, or nil.
func (t *TeamDescription) FindAgent(number int) *AgentDescription {
	for _, a := range t.Agents {
		if a.Number == number {
			return a
		}
	}
	return nil
}

// AgentDescription tracks the distinct player types an agent used.
type AgentDescription struct {
	Number        int
	PlayerTypes   []*ParameterMap
	LastTypeIndex int // Index into PlayerTypes of the most recent type, -1 if none
}

// UsePlayerType records pt as the agent's current type and returns its index
// in PlayerTypes. Types are compared by identity.
func (a *AgentDescription) UsePlayerType(pt *ParameterMap) int {
	for i, existing := range a.PlayerTypes {
		if existing == pt {
			a.LastTypeIndex = i
			return i
		}
	}
	a.PlayerTypes = append(a.PlayerTypes, pt)
	a.LastTypeIndex = len(a.PlayerTypes) - 1
	return a.LastTypeIndex
}
