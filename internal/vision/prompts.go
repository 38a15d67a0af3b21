package vision

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are a precise UI analyst for desktop applications rendered in a web view.
You receive one screenshot. Coordinates are pixels from the top-left corner of the screenshot.
Reply with a single JSON object and nothing else.`

func findElementPrompt(description string, width, height int64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Locate this element: %s\n", description)
	if width > 0 && height > 0 {
		fmt.Fprintf(&b, "The screenshot is %dx%d pixels.\n", width, height)
	}
	b.WriteString(`Answer with {"found": bool, "x": number, "y": number, "confidence": number between 0 and 1, "reasoning": string, "alternative": string}.
x and y are the center of the element. When it is not visible set found to false and use alternative to name the closest match, if any.`)
	return b.String()
}

func nextActionPrompt(instruction string, actionSpace []string) string {
	return fmt.Sprintf(`Goal: %s
Choose the single next action from: %s.
Answer with {"action": string, "params": object, "thought": string, "finished": bool}.
Use params x and y for pointer actions, text for typing, key for key presses, deltaX and deltaY for scrolling.
Set finished to true and action to "finish" once the goal is already met.`, instruction, strings.Join(actionSpace, ", "))
}

func assertPrompt(assertion, expected string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Judge whether this holds for the screenshot: %s\n", assertion)
	if expected != "" {
		fmt.Fprintf(&b, "Expected: %s\n", expected)
	}
	b.WriteString(`Answer with {"passed": bool, "reasoning": string, "actual": string, "suggestions": [string]}.
actual describes what the screen really shows.`)
	return b.String()
}
