package schemas

import (
	"strings"
	"testing"
)

type TestStruct struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

func TestAddType(t *testing.T) {
	r := NewRegistry()
	if err := r.AddType("test-struct", TestStruct{Name: "test", Age: 25}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	v, found := r.Type("test-struct")
	if !found {
		t.Fatal("Expected type to be registered")
	}
	if _, ok := v.(TestStruct); !ok {
		t.Errorf("Expected value of type TestStruct, got %T", v)
	}
	if _, found := r.Type("non-existent"); found {
		t.Error("Expected type not to be found")
	}
}

func TestAddTypeRejects(t *testing.T) {
	r := NewRegistry()
	if err := r.AddType("dup", TestStruct{}); err != nil {
		t.Fatal(err)
	}
	if err := r.AddType("dup", TestStruct{}); err == nil {
		t.Error("Expected error for duplicate id")
	}
	if err := r.AddType("ptr", &TestStruct{}); err != nil {
		t.Errorf("Expected pointer to struct to be accepted, got %v", err)
	}
	for _, v := range []interface{}{42, "text", nil, []TestStruct{}} {
		if err := r.AddType("bad", v); err == nil {
			t.Errorf("Expected error for %T", v)
		}
	}
}

func TestAddConstant(t *testing.T) {
	r := NewRegistry()
	if err := r.AddConstant("MAX_ITEMS", 10); err != nil {
		t.Fatal(err)
	}
	if err := r.AddConstant("MAX_ITEMS", 11); err == nil {
		t.Error("Expected error for duplicate constant")
	}
	for _, name := range []string{"maxItems", "1ST", "", "MAX-ITEMS"} {
		if err := r.AddConstant(name, 1); err == nil {
			t.Errorf("Expected error for name %q", name)
		}
	}
	if err := r.AddConstant("BAD_VALUE", func() {}); err == nil {
		t.Error("Expected error for a value json can't encode")
	}
}

func TestIDsAndConstantsSorted(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"b", "c", "a"} {
		if err := r.AddType(id, TestStruct{}); err != nil {
			t.Fatal(err)
		}
	}
	for _, name := range []string{"ZETA", "ALPHA"} {
		if err := r.AddConstant(name, true); err != nil {
			t.Fatal(err)
		}
	}

	if got := strings.Join(r.IDs(), ","); got != "a,b,c" {
		t.Errorf("Expected a,b,c, got %s", got)
	}
	if got := strings.Join(r.Constants(), ","); got != "ALPHA,ZETA" {
		t.Errorf("Expected ALPHA,ZETA, got %s", got)
	}
}

type ZodTestStruct struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

func TestWriteZod(t *testing.T) {
	r := NewRegistry()
	if err := r.AddType("zod-test", ZodTestStruct{}); err != nil {
		t.Fatal(err)
	}
	if err := r.AddConstant("MAX_FILE_SIZE", 2097152); err != nil {
		t.Fatal(err)
	}
	if err := r.AddConstant("ALLOWED_TEXT_TYPES", []string{"css", "js"}); err != nil {
		t.Fatal(err)
	}

	var b strings.Builder
	if err := r.WriteZod(&b); err != nil {
		t.Fatal(err)
	}
	text := b.String()

	want := "import { z } from \"zod\";\n\n" +
		"export const ALLOWED_TEXT_TYPES = [\"css\",\"js\"];\n" +
		"export const MAX_FILE_SIZE = 2097152;\n\n"
	if !strings.HasPrefix(text, want) {
		t.Errorf("Expected output to start with:\n%s\ngot:\n%s", want, text)
	}
	for _, s := range []string{"ZodTestStruct", "filename"} {
		if !strings.Contains(text, s) {
			t.Errorf("Expected schema to contain %q, got:\n%s", s, text)
		}
	}
}

func TestWriteZodWithoutConstants(t *testing.T) {
	r := NewRegistry()
	var b strings.Builder
	if err := r.WriteZod(&b); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(b.String(), "export const") {
		t.Errorf("Expected no constants, got:\n%s", b.String())
	}
}

func TestRegisterDuplicateIdPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Register() should have panicked for duplicate ID")
		}
	}()

	Register("duplicate-test", TestStruct{})
	Register("duplicate-test", TestStruct{})
}

func TestPackageRegistry(t *testing.T) {
	Register("package-test", ZodTestStruct{})
	RegisterConstant("PACKAGE_TEST_LIMIT", 3)

	if _, found := Get("package-test"); !found {
		t.Error("Expected type to be registered")
	}
	found := false
	for _, id := range List() {
		if id == "package-test" {
			found = true
		}
	}
	if !found {
		t.Error("Expected package-test in List()")
	}
	if text := ToZodSchema(); !strings.Contains(text, "export const PACKAGE_TEST_LIMIT = 3;") {
		t.Errorf("Expected constant in output, got:\n%s", text)
	}
}
