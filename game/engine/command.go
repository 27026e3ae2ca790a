package engine

import "strings"

// Command is a single program instruction
type Command string

const (
	CommandForward   Command = "forward"
	CommandTurnLeft  Command = "left"
	CommandTurnRight Command = "right"
)

// Valid reports whether the executor recognises c
func (c Command) Valid() bool {
	switch c {
	case CommandForward, CommandTurnLeft, CommandTurnRight:
		return true
	}
	return false
}

// ParseProgram converts raw tokens into a program, trimming and lower-casing
// each one. Unknown tokens are kept so the executor can report them.
func ParseProgram(tokens []string) []Command {
	program := make([]Command, 0, len(tokens))
	for _, token := range tokens {
		program = append(program, Command(strings.ToLower(strings.TrimSpace(token))))
	}
	return program
}

// Strings converts a program back to plain tokens
func Strings(program []Command) []string {
	tokens := make([]string, len(program))
	for i, c := range program {
		tokens[i] = string(c)
	}
	return tokens
}
