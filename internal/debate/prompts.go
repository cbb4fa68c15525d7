package debate

import (
	"embed"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed template/*.txt
var templates embed.FS

func mustTemplate(name string) string {
	b, err := templates.ReadFile("template/" + name)
	if err != nil {
		panic(err)
	}
	return string(b)
}

var stageTemplates = map[Stage]string{
	StageOpening:          mustTemplate("opening.txt"),
	StageCrossExamination: mustTemplate("cross.txt"),
	StageFreeDebate:       mustTemplate("free.txt"),
	StageClosing:          mustTemplate("closing.txt"),
}

var turnTemplate = mustTemplate("turn.txt")

// chatTemplate is the persona system prompt of a stage followed by the
// history and the speech instruction.
func chatTemplate(stage Stage) prompt.ChatTemplate {
	return prompt.FromMessages(schema.GoTemplate,
		schema.SystemMessage(stageTemplates[stage]),
		schema.UserMessage(turnTemplate),
	)
}
