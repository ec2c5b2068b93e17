package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateId_Determinism(t *testing.T) {
	req := Request{FilePath: "src/module.py", EntityType: EntityFunction, Name: "utility_function"}

	first, err := GenerateId(req)
	require.NoError(t, err)
	second, err := GenerateId(req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestGenerateId_File(t *testing.T) {
	ids, err := GenerateId(Request{FilePath: "./Src\\Module.py", EntityType: EntityFile, Name: "module.py"})
	require.NoError(t, err)

	assert.Equal(t, "src/module.py::File::module.py", ids.CanonicalID)
	assert.Equal(t, "python", ids.GID[:6])
}

func TestGenerateId_FunctionMissingParamTypesUsesAny(t *testing.T) {
	ids, err := GenerateId(Request{
		FilePath:   "a.py",
		EntityType: EntityFunction,
		Name:       "f",
		ParamTypes: []string{"int", ""},
	})
	require.NoError(t, err)
	assert.Contains(t, ids.CanonicalID, "f(int,Any)")
}

func TestGenerateId_Method(t *testing.T) {
	file, err := GenerateId(Request{FilePath: "a.py", EntityType: EntityFile, Name: "a.py"})
	require.NoError(t, err)
	class, err := GenerateId(Request{FilePath: "a.py", EntityType: EntityClass, Name: "C", ParentCanonicalID: file.CanonicalID})
	require.NoError(t, err)
	method, err := GenerateId(Request{FilePath: "a.py", EntityType: EntityMethod, Name: "m", ParentCanonicalID: class.CanonicalID, ParamTypes: []string{"self"}})
	require.NoError(t, err)

	assert.Equal(t, "a.py::File::a.py::Class::C::Method::m(self)", method.CanonicalID)
}

func TestGenerateId_Variable(t *testing.T) {
	file, err := GenerateId(Request{FilePath: "a.py", EntityType: EntityFile, Name: "a.py"})
	require.NoError(t, err)

	moduleVar, err := GenerateId(Request{FilePath: "a.py", EntityType: EntityVariable, Name: "x", ParentCanonicalID: file.CanonicalID})
	require.NoError(t, err)
	assert.Equal(t, file.CanonicalID+"::x", moduleVar.CanonicalID)
}

func TestGenerateId_Import(t *testing.T) {
	ids, err := GenerateId(Request{FilePath: "a.py", EntityType: EntityImport, Name: "path", SourceModule: "os"})
	require.NoError(t, err)
	assert.Equal(t, "a.py::File::a.py::IMPORT:path@os", ids.CanonicalID)
}

func TestGenerateId_InvalidArgument(t *testing.T) {
	_, err := GenerateId(Request{EntityType: EntityFile, Name: "x"})
	require.Error(t, err)
	assert.ErrorAs(t, err, new(*InvalidArgumentError))

	_, err = GenerateId(Request{FilePath: "a.py", Name: "x", EntityType: "Bogus"})
	require.Error(t, err)
}

func TestParseId_RoundTripFile(t *testing.T) {
	ids, err := GenerateId(Request{FilePath: "src/module.py", EntityType: EntityFile, Name: "module.py"})
	require.NoError(t, err)

	parsed, err := ParseId(ids.CanonicalID)
	require.NoError(t, err)
	assert.Equal(t, "src/module.py", parsed.FilePath)
	assert.Equal(t, EntityFile, parsed.EntityType)
	assert.Equal(t, "module.py", parsed.Name)
}

func TestParseId_RoundTripMethod(t *testing.T) {
	file, _ := GenerateId(Request{FilePath: "a.py", EntityType: EntityFile, Name: "a.py"})
	class, _ := GenerateId(Request{FilePath: "a.py", EntityType: EntityClass, Name: "C", ParentCanonicalID: file.CanonicalID})
	method, err := GenerateId(Request{FilePath: "a.py", EntityType: EntityMethod, Name: "load", ParentCanonicalID: class.CanonicalID, ParamTypes: []string{"self", "path"}})
	require.NoError(t, err)

	parsed, err := ParseId(method.CanonicalID)
	require.NoError(t, err)
	assert.Equal(t, EntityMethod, parsed.EntityType)
	assert.Equal(t, "load", parsed.Name)
	assert.Equal(t, class.CanonicalID, parsed.ParentCanonicalID)
}

func TestParseId_RoundTripVariable(t *testing.T) {
	file, _ := GenerateId(Request{FilePath: "a.py", EntityType: EntityFile, Name: "a.py"})
	v, err := GenerateId(Request{FilePath: "a.py", EntityType: EntityVariable, Name: "counter", ParentCanonicalID: file.CanonicalID})
	require.NoError(t, err)

	parsed, err := ParseId(v.CanonicalID)
	require.NoError(t, err)
	assert.Equal(t, EntityVariable, parsed.EntityType)
	assert.Equal(t, "counter", parsed.Name)
	assert.Equal(t, file.CanonicalID, parsed.ParentCanonicalID)
}

func TestParseId_GID(t *testing.T) {
	ids, err := GenerateId(Request{FilePath: "a.py", EntityType: EntityFile, Name: "a.py"})
	require.NoError(t, err)

	parsed, err := ParseId(ids.GID)
	require.NoError(t, err)
	assert.Equal(t, "python", parsed.Language)
	assert.Empty(t, parsed.FilePath)
}

func TestParseId_Invalid(t *testing.T) {
	_, err := ParseId("")
	require.Error(t, err)

	_, err = ParseId("not-a-valid-id-at-all")
	require.Error(t, err)
}
