// Package schematest provides a small blog schema used across package tests.
package schematest

import (
	_ "embed"

	"github.com/localnerve/contentdb/internal/schema"
)

//go:embed blog.yaml
var blogYAML []byte

// Model uids of the blog schema
const (
	Article = "api::article.article"
	Writer  = "api::writer.writer"
	Tag     = "api::tag.tag"
	Banner  = "api::banner.banner"
	Comment = "api::comment.comment"
	File    = "plugin::upload.file"
	SEO     = "shared.seo"
	Social  = "shared.social"
	Section = "blog.section"
	Link    = "shared.link"
	Quote   = "blog.quote"
	Media   = "blog.media"
)

// Models parses a fresh copy of the blog schema
func Models() []*schema.Model {
	models, err := schema.Parse(blogYAML)
	if err != nil {
		panic(err)
	}
	return models
}

// Registry returns a validated registry over a fresh copy of the blog schema
func Registry() *schema.Registry {
	r, err := schema.NewRegistry(Models())
	if err != nil {
		panic(err)
	}
	return r
}
