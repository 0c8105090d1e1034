package reasoning

import (
	"fmt"
	"strings"
)

const cotSystem = `You are a careful reasoner. Work through the task in three passes:

1. Break the task into its component parts.
2. Reason through each part step by step, stating intermediate conclusions.
3. Synthesize a final answer from the intermediate conclusions.

Keep the reasoning visible and end with the complete final answer.`

const totGenerationSystem = `You are exploring solution paths for a task. Given the reasoning so far, propose the single most promising next step.

Commit to one concrete direction. Parallel candidates are explored separately, so do not hedge across alternatives. Respond with the next reasoning step only; do not restate the task or summarize prior steps.`

const totSynthesisSystem = `You are concluding a structured exploration of a task. The chosen reasoning path is given in order. Produce the final answer that path supports, complete and self-contained. Do not mention the exploration process.`

const swarmConclusionSystem = `Summarize your analysis as a final position on the task. State your conclusion and how confident you are in it.`

const swarmDebateSystem = `You are in a structured debate. Other agents reached conclusions that differ from yours. Review their positions, then restate your own conclusion, revised where their arguments genuinely warrant it. Do not soften your position just to agree.`

const swarmSynthesisSystem = `Several agents analyzed the task independently and their conclusions have been reconciled. Produce one final answer reflecting the reconciled position. Speak with one voice; do not attribute points to individual agents.`

const hybridDecomposeSystem = `Break the task into 3 to 5 concrete subtasks that together cover it. Respond with a numbered list, one subtask per line, nothing else.`

const hybridExploreSystem = `Work through the listed subtasks in order. For each one, reason freely, note observations, and state a partial result before moving on. Breadth matters more than polish here; a later pass will consolidate.`

const hybridSynthesizeSystem = `Consolidate the exploration into the final answer. Resolve loose ends, drop dead ends, and present the result as a direct response to the original task.`

// agentRole pairs a swarm role with the stance its agent argues from.
type agentRole struct {
	name   string
	system string
}

var swarmRoles = []agentRole{
	{
		name:   "analyst",
		system: `You are the analyst. Decompose the task methodically, reason through each part, and build your conclusion from the parts. Favor rigor over speed.`,
	},
	{
		name:   "skeptic",
		system: `You are the skeptic. Hunt for flaws, edge cases, and unstated assumptions in the obvious approach to the task. Your conclusion should survive your own objections.`,
	},
	{
		name:   "explorer",
		system: `You are the explorer. Look for unconventional angles, reframings, and approaches the direct path would miss. Commit to the most promising one you find.`,
	},
	{
		name:   "pragmatist",
		system: `You are the pragmatist. Favor the simplest answer that actually works. Cut scope aggressively and say what you would do first.`,
	},
	{
		name:   "synthesizer",
		system: `You are the synthesizer. Consider the major competing approaches to the task, weigh their tradeoffs explicitly, and conclude with the balance of evidence.`,
	},
}

func roleForAgent(i int) agentRole {
	return swarmRoles[i%len(swarmRoles)]
}

// taskBlock renders the task the same way for every strategy: prompt
// first, then optional background, then caller hints.
func taskBlock(task *Task) string {
	var b strings.Builder

	b.WriteString("Task:\n")
	b.WriteString(task.Prompt)
	b.WriteString("\n")

	if task.Context != "" {
		b.WriteString("\nBackground:\n")
		b.WriteString(task.Context)
		b.WriteString("\n")
	}

	if len(task.Hints) > 0 {
		b.WriteString("\nDirectives:\n")
		for _, hint := range task.Hints {
			b.WriteString("- ")
			b.WriteString(hint)
			b.WriteString("\n")
		}
	}

	return b.String()
}

// withOutputFormat appends the caller's output format directive to a
// system prompt.
func withOutputFormat(system string, task *Task) string {
	if task.OutputFormat == "" {
		return system
	}
	return system + fmt.Sprintf("\n\nFormat the final answer as %s.", task.OutputFormat)
}

func totGenerationPrompt(task *Task, path []*Step, branch, branches int) string {
	var b strings.Builder

	b.WriteString(taskBlock(task))

	if len(path) > 0 {
		b.WriteString("\nReasoning so far:\n")
		for i, step := range path {
			b.WriteString(fmt.Sprintf("%d. %s\n", i+1, step.Thought))
		}
	}

	b.WriteString(fmt.Sprintf("\nPropose the next reasoning step. This is candidate %d of %d; take an angle a sibling candidate would not.", branch+1, branches))
	return b.String()
}

func totSynthesisPrompt(task *Task, path []*Step) string {
	var b strings.Builder

	b.WriteString(taskBlock(task))
	b.WriteString("\nChosen reasoning path:\n")
	for i, step := range path {
		b.WriteString(fmt.Sprintf("%d. %s\n", i+1, step.Thought))
	}
	b.WriteString("\nGive the final answer this path supports.")
	return b.String()
}

func swarmStepPrompt(task *Task, prior []*Step, step, total int) string {
	var b strings.Builder

	b.WriteString(taskBlock(task))

	if len(prior) > 0 {
		b.WriteString("\nYour reasoning so far:\n")
		for i, s := range prior {
			b.WriteString(fmt.Sprintf("%d. %s\n", i+1, s.Thought))
		}
		b.WriteString(fmt.Sprintf("\nContinue your analysis (pass %d of %d). Go deeper; do not repeat yourself.", step+1, total))
	} else {
		b.WriteString(fmt.Sprintf("\nBegin your analysis (pass 1 of %d).", total))
	}

	return b.String()
}

func swarmConclusionPrompt(task *Task, prior []*Step) string {
	var b strings.Builder

	b.WriteString(taskBlock(task))
	if len(prior) > 0 {
		b.WriteString("\nYour reasoning so far:\n")
		for i, s := range prior {
			b.WriteString(fmt.Sprintf("%d. %s\n", i+1, s.Thought))
		}
	}
	b.WriteString("\nState your final conclusion on the task.")
	return b.String()
}

// agentConclusion pairs a role label with the conclusion it reached.
// Prompts take slices so agent order is stable across runs.
type agentConclusion struct {
	role       string
	conclusion string
}

func swarmDebatePrompt(task *Task, own string, others []agentConclusion) string {
	var b strings.Builder

	b.WriteString(taskBlock(task))
	b.WriteString("\nYour current conclusion:\n")
	b.WriteString(own)
	b.WriteString("\n\nConclusions from other agents:\n")
	for _, other := range others {
		b.WriteString(fmt.Sprintf("\n[%s]\n%s\n", other.role, other.conclusion))
	}
	b.WriteString("\nRestate your conclusion, revised only where their arguments warrant it.")
	return b.String()
}

func swarmSynthesisPrompt(task *Task, conclusions []agentConclusion) string {
	var b strings.Builder

	b.WriteString(taskBlock(task))
	b.WriteString("\nReconciled agent conclusions:\n")
	for _, c := range conclusions {
		b.WriteString(fmt.Sprintf("\n[%s]\n%s\n", c.role, c.conclusion))
	}
	b.WriteString("\nProduce the final answer.")
	return b.String()
}

func hybridExplorePrompt(task *Task, decomposition string) string {
	var b strings.Builder

	b.WriteString(taskBlock(task))
	b.WriteString("\nSubtasks:\n")
	b.WriteString(decomposition)
	b.WriteString("\n\nWork through each subtask in order.")
	return b.String()
}

func hybridSynthesizePrompt(task *Task, decomposition, exploration string) string {
	var b strings.Builder

	b.WriteString(taskBlock(task))
	b.WriteString("\nSubtasks:\n")
	b.WriteString(decomposition)
	b.WriteString("\n\nExploration notes:\n")
	b.WriteString(exploration)
	b.WriteString("\n\nConsolidate into the final answer.")
	return b.String()
}
