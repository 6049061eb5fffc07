package ignore

import "testing"

func TestAncestorExclusion(t *testing.T) {
	r := Parse("node_modules\n")

	if !r.Ignored("node_modules", true) {
		t.Fatal("expected direct match to be ignored")
	}
	if !r.Ignored("node_modules/x", false) {
		t.Fatal("expected child of ignored directory to be ignored via ancestor match")
	}
	if !r.Ignored("node_modules/a/b.txt", false) {
		t.Fatal("expected deep descendant to be ignored via ancestor match")
	}
	if r.Ignored("a.txt", false) {
		t.Fatal("did not expect unrelated file to be ignored")
	}
}

func TestNegation(t *testing.T) {
	r := Parse("*.log\n!keep.log\n")

	if !r.Ignored("debug.log", false) {
		t.Fatal("expected debug.log to be ignored")
	}
	if r.Ignored("keep.log", false) {
		t.Fatal("expected keep.log to be un-ignored by negation")
	}
}

func TestDirectoryOnlyPattern(t *testing.T) {
	r := Parse("build/\n")

	if !r.Ignored("build", true) {
		t.Fatal("expected directory-only pattern to match a directory")
	}
	if r.Ignored("build", false) {
		t.Fatal("did not expect directory-only pattern to match a file")
	}
}

func TestCommentsAndBlankLinesSkipped(t *testing.T) {
	r := Parse("# comment\n\n*.tmp\n")
	if !r.Ignored("a.tmp", false) {
		t.Fatal("expected *.tmp to be ignored")
	}
	if len(r.patterns) != 1 {
		t.Fatalf("expected exactly one compiled pattern, got %d", len(r.patterns))
	}
}

func TestWhitelistFilter(t *testing.T) {
	filter := WhitelistFilter([]string{"src/a.txt"})

	if filter("src/a.txt", false) {
		t.Fatal("whitelisted file should not be excluded")
	}
	if filter("src", true) {
		t.Fatal("ancestor of a whitelisted path should not be excluded, to allow descent")
	}
	if !filter("src/b.txt", false) {
		t.Fatal("sibling file outside the whitelist should be excluded")
	}
}

func TestWhitelistDirectoryEntry(t *testing.T) {
	filter := WhitelistFilter([]string{"src/"})

	if filter("src/a.txt", false) {
		t.Fatal("file inside whitelisted directory should not be excluded")
	}
	if filter("src", true) {
		t.Fatal("the whitelisted directory itself should not be excluded")
	}
	if !filter("other.txt", false) {
		t.Fatal("file outside whitelisted directory should be excluded")
	}
}
