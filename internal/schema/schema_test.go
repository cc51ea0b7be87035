package schema_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/localnerve/contentdb/internal/schema"
	"github.com/localnerve/contentdb/internal/schema/schematest"
	"github.com/localnerve/contentdb/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBlogSchema(t *testing.T) {
	reg := schematest.Registry()
	assert.Len(t, reg.Models(), 12)

	article, err := reg.Model(schematest.Article)
	require.NoError(t, err)
	assert.Equal(t, schema.NamespaceAPI, article.Namespace)
	assert.Equal(t, schema.DefaultConnector, article.Connector)

	seo, ok := article.Attribute("seo")
	require.True(t, ok)
	assert.Equal(t, schema.KindComponent, seo.Kind)
	assert.True(t, seo.IsVirtual())

	blocks, _ := article.Attribute("blocks")
	assert.Equal(t, schema.KindDynamicZone, blocks.Kind)
	assert.True(t, blocks.AllowsComponent(schematest.Quote))
	assert.False(t, blocks.AllowsComponent(schematest.Link))

	tags, _ := article.Attribute("tags")
	assert.Equal(t, schema.ManyToMany, tags.Relation)
	assert.True(t, tags.IsStoredRelation())

	tag, _ := reg.Model(schematest.Tag)
	inverse, _ := tag.Attribute("articles")
	assert.True(t, inverse.IsVirtual(), "non-dominant many-to-many is not stored")

	comp, _ := reg.Model(schematest.Link)
	assert.True(t, comp.IsComponent())
}

func TestRelationNames(t *testing.T) {
	tests := []struct {
		name  string
		want  schema.Relation
		morph bool
	}{
		{"oneWay", schema.OneWay, false},
		{"onetoone", schema.OneToOne, false},
		{"manyToMany", schema.ManyToMany, false},
		{"oneToManyMorph", schema.OneToManyMorph, true},
		{"manyMorphToOne", schema.ManyMorphToOne, true},
		{"oneMorphToMany", schema.OneMorphToMany, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := schema.ParseRelation(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.morph, got.IsMorph())
		})
	}

	_, err := schema.ParseRelation("sideways")
	assert.Error(t, err)
}

func TestValidateDuplicateCollection(t *testing.T) {
	models := schematest.Models()
	models = append(models, &schema.Model{
		UID:        "api::post.post",
		Name:       "post",
		Namespace:  schema.NamespaceAPI,
		Collection: "Articles",
	})

	err := schema.Validate(models)
	require.Error(t, err)
	assert.True(t, types.IsSchema(err))
	assert.Contains(t, err.Error(), "api::article.article")
	assert.Contains(t, err.Error(), "api::post.post")
}

func TestValidateReservedNames(t *testing.T) {
	models := []*schema.Model{
		{UID: "api::admin.admin", Name: "admin", Collection: "admins"},
		{UID: "api::thing.thing", Name: "thing", Collection: "things", Attributes: []*schema.Attribute{
			{Name: "length", Type: "integer"},
		}},
	}

	err := schema.Validate(models)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `reserved model name "admin"`)
	assert.Contains(t, err.Error(), `reserved attribute name "length"`)
}

func TestValidateComponentCycle(t *testing.T) {
	models := []*schema.Model{
		{UID: "a.one", Name: "one", Namespace: schema.NamespaceComponent, Collection: "c_one", Attributes: []*schema.Attribute{
			{Name: "next", Type: "component", Component: "a.two"},
		}},
		{UID: "a.two", Name: "two", Namespace: schema.NamespaceComponent, Collection: "c_two", Attributes: []*schema.Attribute{
			{Name: "back", Type: "component", Component: "a.one", Repeatable: true},
		}},
	}

	err := schema.Validate(models)
	require.Error(t, err)
	assert.True(t, types.IsSchema(err))
	assert.Contains(t, err.Error(), "component cycle")
}

func TestValidateRelationTargets(t *testing.T) {
	models := []*schema.Model{
		{UID: "api::a.a", Name: "a", Collection: "as", Attributes: []*schema.Attribute{
			{Name: "b", Type: "relation", RelationName: "manyToOne", Target: "api::b.b", Via: "missing"},
			{Name: "c", Type: "relation", RelationName: "oneWay", Target: "api::c.c"},
		}},
		{UID: "api::b.b", Name: "b", Collection: "bs"},
	}

	err := schema.Validate(models)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `via "missing"`)
	assert.Contains(t, err.Error(), `unknown model "api::c.c"`)
}

func TestResolve(t *testing.T) {
	reg := schematest.Registry()

	m, err := reg.Resolve("ARTICLE", "")
	require.NoError(t, err)
	assert.Equal(t, schematest.Article, m.UID)

	m, err = reg.Resolve("file", "upload")
	require.NoError(t, err)
	assert.Equal(t, schematest.File, m.UID)

	_, err = reg.Resolve("file", "")
	assert.True(t, types.IsNotFound(err))

	m, err = reg.Resolve(schematest.Tag, "")
	require.NoError(t, err)
	assert.Equal(t, "tag", m.Name)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte(`
models:
  - uid: api::page.page
    name: page
    collection: pages
    attributes:
      - { name: title, type: string }
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yml"), []byte(`
components:
  - uid: page.hero
    name: hero
    collection: components_page_heroes
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0o644))

	models, err := schema.Load(dir)
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, schema.NamespaceAPI, models[0].Namespace)
	assert.Equal(t, schema.NamespaceComponent, models[1].Namespace)
	require.NoError(t, schema.Validate(models))
}
