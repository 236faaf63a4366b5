package canonical

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinearize_MixedScalars(t *testing.T) {
	data := Map{
		{Key: "string", Value: String("ahoj")},
		{Key: "emptyString", Value: String("")},
		{Key: "num", Value: Int(123)},
		{Key: "trueBool", Value: Bool(true)},
		{Key: "zeroString", Value: String("0")},
		{Key: "null", Value: Null{}},
		{Key: "falseBool", Value: Bool(false)},
		{Key: "arr", Value: List{String("a"), String("b"), String("c")}},
	}

	assert.Equal(t, "ahoj||123|true|0||false|a|b|c", Linearize(data))
}

func TestLinearize_NestedMapSplicedInPlace(t *testing.T) {
	data := Map{
		{Key: "a", Value: String("1")},
		{Key: "nested", Value: Map{
			{Key: "x", Value: String("2")},
			{Key: "y", Value: Map{
				{Key: "deep", Value: String("3")},
			}},
		}},
		{Key: "b", Value: String("4")},
	}

	assert.Equal(t, "1|2|3|4", Linearize(data))
}

func TestLinearize_Deterministic(t *testing.T) {
	data := Map{
		{Key: "a", Value: Int(1)},
		{Key: "b", Value: Float(12.5)},
		{Key: "c", Value: Bool(true)},
	}

	first := Linearize(data)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Linearize(data))
	}
	assert.Equal(t, "1|12.5|true", first)
}

func TestResolveOrdered_OrderedOptionalVector(t *testing.T) {
	data := Map{
		{Key: "lorem", Value: String("ipsum")},
		{Key: "dolor", Value: String("sit")},
		{Key: "foo", Value: Map{
			{Key: "a", Value: String("AAA")},
			{Key: "b", Value: String("BBB")},
			{Key: "c", Value: String("CCC")},
		}},
		{Key: "xxx", Value: Map{
			{Key: "a", Value: Map{
				{Key: "z", Value: String("Z")},
				{Key: "y", Value: String("Y")},
				{Key: "x", Value: String("X")},
			}},
			{Key: "b", Value: Map{
				{Key: "z", Value: Int(1)},
				{Key: "y", Value: Int(2)},
				{Key: "x", Value: Int(3)},
			}},
		}},
	}

	order := ParseOrder([]string{
		"lorem",
		"foo.a",
		"xxx.a",
		"dolor",
		"flash",
		"foo.c",
		"xxx.a.y",
		"?what",
		"xxx.b.x",
		"?zzz",
		"xxx.d.x.c.d.e",
		"xxx.b",
	})

	got := ResolveOrdered(data, order)

	// flash is required and missing: empty segment, position kept.
	// ?what and ?zzz are optional and missing: elided, sequence shrinks.
	// xxx.a and xxx.b are maps reached with no remaining path: children
	// expand in their own order.
	want := []string{
		"ipsum",
		"AAA",
		"Z", "Y", "X",
		"sit",
		"",
		"CCC",
		"Y",
		"3",
		"",
		"1", "2", "3",
	}
	assert.Equal(t, want, got)
}

func TestResolveOrdered_RequiredMissingKeepsPosition(t *testing.T) {
	data := Map{{Key: "a", Value: String("x")}}
	order := ParseOrder([]string{"a", "missing", "a"})

	assert.Equal(t, []string{"x", "", "x"}, ResolveOrdered(data, order))
	assert.Equal(t, "x||x", ResolveOrderedString(data, order))
}

func TestResolveOrdered_OptionalMissingShrinks(t *testing.T) {
	data := Map{{Key: "a", Value: String("x")}}
	order := ParseOrder([]string{"a", "?missing", "a"})

	assert.Equal(t, []string{"x", "x"}, ResolveOrdered(data, order))
}

func TestResolveOrdered_PathThroughScalarIsMissing(t *testing.T) {
	data := Map{{Key: "a", Value: String("leaf")}}
	order := ParseOrder([]string{"a.b.c"})

	assert.Equal(t, []string{""}, ResolveOrdered(data, order))
}

func TestParseFieldSpec(t *testing.T) {
	assert.Equal(t, FieldSpec{Path: "createdDate", Optional: true}, ParseFieldSpec("?createdDate"))
	assert.Equal(t, FieldSpec{Path: "redirect.url"}, ParseFieldSpec("redirect.url"))
}

func TestFilterEmpty(t *testing.T) {
	data := Map{
		{Key: "keepString", Value: String("v")},
		{Key: "dropEmpty", Value: String("")},
		{Key: "dropNull", Value: Null{}},
		{Key: "keepZeroInt", Value: Int(0)},
		{Key: "keepZeroString", Value: String("0")},
		{Key: "keepFalse", Value: Bool(false)},
	}

	got := FilterEmpty(data)

	require.Len(t, got, 4)
	assert.Equal(t, "keepString", got[0].Key)
	assert.Equal(t, "keepZeroInt", got[1].Key)
	assert.Equal(t, "keepZeroString", got[2].Key)
	assert.Equal(t, "keepFalse", got[3].Key)
}

func TestDecodeJSON_PreservesKeyOrder(t *testing.T) {
	body := []byte(`{"z":"last?no:first","a":2,"m":{"b":"1","a":"2"},"list":[1,true,null]}`)

	m, err := DecodeJSON(body)
	require.NoError(t, err)

	require.Len(t, m, 4)
	assert.Equal(t, "z", m[0].Key)
	assert.Equal(t, "a", m[1].Key)
	assert.Equal(t, "m", m[2].Key)
	assert.Equal(t, "list", m[3].Key)

	nested, ok := m.Get("m")
	require.True(t, ok)
	assert.Equal(t, Map{
		{Key: "b", Value: String("1")},
		{Key: "a", Value: String("2")},
	}, nested)

	list, ok := m.Get("list")
	require.True(t, ok)
	assert.Equal(t, List{Int(1), Bool(true), Null{}}, list)
}

func TestDecodeJSON_Numbers(t *testing.T) {
	m, err := DecodeJSON([]byte(`{"i":12345678901234,"f":12.5,"e":1e3}`))
	require.NoError(t, err)

	i, _ := m.Get("i")
	assert.Equal(t, Int(12345678901234), i)
	f, _ := m.Get("f")
	assert.Equal(t, Float(12.5), f)
	e, _ := m.Get("e")
	assert.Equal(t, Float(1000), e)
}

func TestDecodeJSON_Malformed(t *testing.T) {
	_, err := DecodeJSON([]byte(`{"a":`))
	assert.Error(t, err)

	_, err = DecodeJSON([]byte(`[1,2]`))
	assert.Error(t, err)
}

func TestMap_MarshalJSON_KeepsOrder(t *testing.T) {
	m := Map{
		{Key: "z", Value: String("1")},
		{Key: "a", Value: Int(2)},
		{Key: "nested", Value: Map{
			{Key: "y", Value: Bool(true)},
			{Key: "x", Value: Null{}},
		}},
		{Key: "items", Value: List{Map{{Key: "n", Value: String("v")}}}},
	}

	b, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `{"z":"1","a":2,"nested":{"y":true,"x":null},"items":[{"n":"v"}]}`, string(b))
}

func TestMap_SetAndWithout(t *testing.T) {
	m := Map{{Key: "a", Value: String("1")}}

	m = m.Set("b", String("2"))
	m = m.Set("a", String("updated"))

	v, ok := m.Get("a")
	assert.True(t, ok)
	assert.Equal(t, String("updated"), v)

	m = m.Without("a")
	_, ok = m.Get("a")
	assert.False(t, ok)
	assert.Len(t, m, 1)
}
