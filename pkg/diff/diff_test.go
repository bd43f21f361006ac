package diff

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLines_IdenticalContent(t *testing.T) {
	content := []byte("* * * * * /usr/share/astguiclient/AST_vm_update.pl\n")
	require.Empty(t, Lines(content, content, "before", "after"))
}

func TestLines_AppendedEntries(t *testing.T) {
	before := []byte("MAILTO=root\n* * * * * /usr/bin/a.pl\n")
	after := []byte("MAILTO=root\n* * * * * /usr/bin/a.pl\n*/5 * * * * /usr/bin/b.pl\n")

	result := Lines(before, after, "crontab (live)", "crontab (reconciled)")

	require.True(t, strings.HasPrefix(result, "--- crontab (live)\n+++ crontab (reconciled)\n"))
	require.Contains(t, result, " MAILTO=root\n")
	require.Contains(t, result, "+*/5 * * * * /usr/bin/b.pl\n")
	require.NotContains(t, result, "-* * * * * /usr/bin/a.pl")
}

func TestLines_ReplacedLine(t *testing.T) {
	before := []byte("Admin URL: http://10.0.0.5/vicidial/admin.php\nUser: 6666\n")
	after := []byte("Admin URL: http://10.0.0.9/vicidial/admin.php\nUser: 6666\n")

	result := Lines(before, after, "a", "b")

	require.Contains(t, result, "-Admin URL: http://10.0.0.5/vicidial/admin.php\n")
	require.Contains(t, result, "+Admin URL: http://10.0.0.9/vicidial/admin.php\n")
	require.Contains(t, result, " User: 6666\n")
}

func TestAdded(t *testing.T) {
	before := []byte("a\nb\n")
	after := []byte("a\nb\nc\nd\n")

	require.Equal(t, []string{"c", "d"}, Added(before, after))
	require.Empty(t, Added(before, before))
}
