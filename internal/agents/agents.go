// Package agents defines the fixed set of game-building agent configurations
// and the keyword dispatch that picks one for an incoming user message.
package agents

import "strings"

// Config is one agent configuration: a named persona with a prebuilt system
// message tuned for a game genre.
type Config struct {
	Name         string
	GameType     string
	Instructions string
}

// rule maps trigger keywords to a specialized configuration. Rules are
// evaluated in order; the first match wins.
type rule struct {
	keywords []string
	config   Config
}

var rules = []rule{
	{
		keywords: []string{"space", "shoot", "alien", "invader"},
		config: newConfig("spaceShooter",
			"Focus on creating fast-paced action with satisfying shooting mechanics. Prioritize responsive controls and clear visual feedback.",
			gameTypeSpaceShooter, loopShootAndDestroy),
	},
	{
		keywords: []string{"jump", "platform", "mario", "sonic"},
		config: newConfig("platformer",
			"Emphasize tight jump controls and satisfying platforming mechanics. Include collectibles and progressive difficulty.",
			gameTypePlatformer, loopJumpAndRun),
	},
	{
		keywords: []string{"puzzle", "match", "tetris", "solve"},
		config: newConfig("puzzleGame",
			"Focus on clear, logical rules and satisfying puzzle-solving mechanics. Provide immediate feedback for player actions.",
			gameTypePuzzle, ""),
	},
	{
		keywords: []string{"survive", "avoid", "dodge", "snake"},
		config: newConfig("survivalGame",
			"Create escalating tension through increasing difficulty. Balance challenge with player agency and clear feedback.",
			gameTypeSurvival, loopCollectAndAvoid),
	},
	{
		keywords: []string{"tower", "defense", "strategy", "protect"},
		config: newConfig("towerDefense",
			"Focus on strategic depth and resource management. Provide clear feedback on tower effectiveness and enemy progression.",
			gameTypeTowerDefense, loopBuildAndManage),
	},
	{
		keywords: []string{"run", "endless", "temple run", "subway"},
		config: newConfig("endlessRunner",
			"Emphasize rhythm and flow. Create a sense of speed and momentum with clear obstacle telegraphing.",
			gameTypeEndlessRunner, loopJumpAndRun),
	},
}

// generic is the fully-capable fallback configuration.
var generic = newConfig("generic",
	"Analyze the user's request and choose the most appropriate game type and mechanics. Use the available templates to guide your implementation.",
	"", "")

// Generic returns the fallback configuration used when no keyword matches or
// the message has no text.
func Generic() Config {
	return generic
}

// ForUserInput picks the agent configuration for the given user text.
// Deterministic, total: empty or unrecognized input yields the generic agent.
func ForUserInput(input string) Config {
	text := strings.ToLower(input)
	if strings.TrimSpace(text) == "" {
		return generic
	}
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(text, kw) {
				return r.config
			}
		}
	}
	return generic
}

func newConfig(gameType, custom, typeSection, loopSection string) Config {
	name := "GameAgent_Generic"
	if gameType != "" && gameType != "generic" {
		name = "GameAgent_" + strings.ToUpper(gameType[:1]) + gameType[1:]
	}
	return Config{
		Name:         name,
		GameType:     gameType,
		Instructions: buildSystemMessage(typeSection, loopSection, custom),
	}
}
