package lockfile

import (
	"slices"
	"testing"
)

func TestParseYarn(t *testing.T) {
	content := `# THIS IS AN AUTOGENERATED FILE. DO NOT EDIT THIS FILE DIRECTLY.
# yarn lockfile v1


"@babel/code-frame@^7.0.0", "@babel/code-frame@^7.22.13":
  version "7.22.13"
  resolved "https://registry.yarnpkg.com/@babel/code-frame/-/code-frame-7.22.13.tgz#e3c1c099402598483b7a8c46a721d1038803755e"
  integrity sha512-x
  dependencies:
    chalk "^2.4.2"

lodash@^4.17.21:
  version "4.17.21"
  "registry" "https://custom.registry.example"

ms@2.1.2:
  version "2.1.2"

left-pad@1.3.0:
  version "1.3.0"
  resolved "file:../vendor/left-pad-1.3.0.tgz"

chalk@^2.4.2:
  version "2.4.2"
  version "9.9.9"
  resolved "https://registry.yarnpkg.com/chalk/-/chalk-2.4.2.tgz"
`
	res, err := ParseYarn([]byte(content), testOpts)
	if err != nil {
		t.Fatalf("ParseYarn: %v", err)
	}

	want := []string{"@babel/code-frame@7.22.13", "chalk@2.4.2", "lodash@4.17.21", "ms@2.1.2"}
	if got := depKeys(res); !slices.Equal(got, want) {
		t.Fatalf("dependencies = %v, want %v", got, want)
	}

	urls := map[string]string{}
	for _, d := range res.Dependencies {
		urls[d.Name] = d.TarballURL
	}
	if urls["@babel/code-frame"] != "https://mirror.local/@babel/code-frame/-/code-frame-7.22.13.tgz" {
		t.Errorf("resolved URL = %q", urls["@babel/code-frame"])
	}
	if urls["lodash"] != "https://mirror.local/lodash/-/lodash-4.17.21.tgz" {
		t.Errorf("registry-synthesized URL = %q", urls["lodash"])
	}
	if urls["ms"] != "https://mirror.local/ms/-/ms-2.1.2.tgz" {
		t.Errorf("mirror fallback URL = %q", urls["ms"])
	}
	if res.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", res.Skipped)
	}
}

func TestParseYarnBerry(t *testing.T) {
	content := `__metadata:
  version: 6

"lodash@npm:^4.17.21":
  version: 4.17.21
  resolution: "lodash@npm:4.17.21"

"app@workspace:.":
  version: 0.0.0-use.local
  resolution: "app@workspace:."
`
	res, err := ParseYarn([]byte(content), testOpts)
	if err != nil {
		t.Fatalf("ParseYarn: %v", err)
	}
	if got := depKeys(res); !slices.Equal(got, []string{"lodash@4.17.21"}) {
		t.Errorf("dependencies = %v", got)
	}
	if res.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1 (workspace block)", res.Skipped)
	}
}

func TestParseYarnAliases(t *testing.T) {
	content := `# yarn lockfile v1


"string-width-cjs@npm:string-width@^4.2.0":
  version "4.2.3"
  resolved "https://registry.yarnpkg.com/string-width/-/string-width-4.2.3.tgz#269c7117d27b05ad2e536830a8ec895ef9c6d010"
  integrity sha512-x

"strip-ansi-cjs@npm:strip-ansi@^6.0.1":
  version "6.0.1"
  resolved "https://registry.yarnpkg.com/strip-ansi/-/strip-ansi-6.0.1.tgz#9e26c63d30f53443e9489495b2105d37b67a85d9"

"wrap-ansi-cjs@npm:wrap-ansi@^7.0.0":
  version "7.0.0"
`
	res, err := ParseYarn([]byte(content), testOpts)
	if err != nil {
		t.Fatalf("ParseYarn: %v", err)
	}
	want := []string{"string-width@4.2.3", "strip-ansi@6.0.1", "wrap-ansi@7.0.0"}
	if got := depKeys(res); !slices.Equal(got, want) {
		t.Fatalf("dependencies = %v, want %v", got, want)
	}
	for _, d := range res.Dependencies {
		if d.Name == "wrap-ansi" && d.TarballURL != "https://mirror.local/wrap-ansi/-/wrap-ansi-7.0.0.tgz" {
			t.Errorf("synthesized alias URL = %q", d.TarballURL)
		}
	}
	if res.Skipped != 0 {
		t.Errorf("Skipped = %d, want 0", res.Skipped)
	}
}

func TestYarnBlockName(t *testing.T) {
	tests := map[string]string{
		`"@babel/core@^7.0.0", "@babel/core@^7.1.0"`: "@babel/core",
		`lodash@^4.17.21`:                            "lodash",
		`"lodash@npm:^4.17.21"`:                      "lodash",
		`"string-width-cjs@npm:string-width@^4.2.0"`: "string-width",
		`"wrap-cjs@npm:@scope/wrap@^7.0.0"`:          "@scope/wrap",
		`__metadata`:                                 "",
	}
	for in, want := range tests {
		if got := yarnBlockName(in); got != want {
			t.Errorf("yarnBlockName(%q) = %q, want %q", in, got, want)
		}
	}
}
