package registry

import (
	"strings"

	"github.com/distribution/reference"

	"github.com/todoroff/terraform-provider-vmdock/internal/models"
)

const defaultTag = "latest"

// ParseImageRef splits an image name into repository and tag.
// Examples:
//   - "nginx" -> {library/nginx latest}
//   - "bitnami/redis:7.2" -> {bitnami/redis 7.2}
//
// Names the reference grammar rejects (search output is not always canonical)
// fall back to a plain split on the first "/" and last ":".
func ParseImageRef(name string) models.ImageRef {
	named, err := reference.ParseNormalizedNamed(strings.TrimSpace(name))
	if err != nil {
		return splitImageRef(name)
	}

	ref := models.ImageRef{Repository: reference.Path(named), Tag: defaultTag}
	if tagged, ok := named.(reference.Tagged); ok {
		ref.Tag = tagged.Tag()
	}
	return ref
}

func splitImageRef(name string) models.ImageRef {
	name = strings.TrimSpace(name)
	ref := models.ImageRef{Repository: name, Tag: defaultTag}
	if i := strings.LastIndex(name, ":"); i > strings.LastIndex(name, "/") {
		ref.Repository = name[:i]
		if tag := name[i+1:]; tag != "" {
			ref.Tag = tag
		}
	}
	return ref
}
