package conversation

import "github.com/alexr72/wpcv/internal/core"

// minRetained is the number of non-system messages trimming always leaves in place.
const minRetained = 2

func trimMessages(messages []core.Message, estimator Estimator, budget Budget) ([]core.Message, int) {
	start := 0
	if len(messages) > 0 && messages[0].Role == core.RoleSystem {
		start = 1
	}

	used := cost(estimator, messages)
	drop := 0

	for used+budget.Headroom > budget.Limit {
		front := start + drop
		remaining := len(messages) - front
		if remaining <= minRetained {
			break
		}

		n := 1
		if remaining >= minRetained+2 && isPair(messages[front], messages[front+1]) {
			n = 2
		}

		for _, m := range messages[front : front+n] {
			used -= estimator.Estimate(m.Content)
		}
		drop += n
	}

	if drop == 0 {
		return messages, 0
	}

	retained := make([]core.Message, 0, len(messages)-drop)
	retained = append(retained, messages[:start]...)
	retained = append(retained, messages[start+drop:]...)
	return retained, drop
}

func isPair(first, second core.Message) bool {
	return first.Role == core.RoleUser && second.Role == core.RoleAssistant
}

func cost(estimator Estimator, messages []core.Message) int {
	total := 0
	for _, m := range messages {
		total += estimator.Estimate(m.Content)
	}
	return total
}
