package container

import (
	"encoding/json"
	"strings"

	"github.com/samber/lo"

	"github.com/todoroff/terraform-provider-vmdock/internal/models"
	"github.com/todoroff/terraform-provider-vmdock/internal/toolcli"
)

type imageLine struct {
	ID         string `json:"ID"`
	Repository string `json:"Repository"`
	Tag        string `json:"Tag"`
	Size       string `json:"Size"`
	CreatedAt  string `json:"CreatedAt"`
}

type containerLine struct {
	ID     string `json:"ID"`
	Image  string `json:"Image"`
	Names  string `json:"Names"`
	Status string `json:"Status"`
	State  string `json:"State"`
	Ports  string `json:"Ports"`
}

func parseImageLines(out string) ([]models.ImageSummary, error) {
	lines := nonEmptyLines(out)
	images := make([]models.ImageSummary, 0, len(lines))
	for _, line := range lines {
		var entry imageLine
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, &toolcli.ParseError{Raw: line, Err: err}
		}
		images = append(images, models.ImageSummary(entry))
	}
	return images, nil
}

func parseContainerLines(out string) ([]models.ContainerSummary, error) {
	lines := nonEmptyLines(out)
	containers := make([]models.ContainerSummary, 0, len(lines))
	for _, line := range lines {
		var entry containerLine
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, &toolcli.ParseError{Raw: line, Err: err}
		}
		containers = append(containers, models.ContainerSummary(entry))
	}
	return containers, nil
}

func nonEmptyLines(out string) []string {
	return lo.Filter(strings.Split(out, "\n"), func(line string, _ int) bool {
		return strings.TrimSpace(line) != ""
	})
}
