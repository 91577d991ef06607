package keyword

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExpandIdKeyword(t *testing.T) {
	ctx := Context{
		Filename: "file",
		Revision: "1.1",
		Author:   "uwe",
		State:    "Exp",
		Date:     time.Date(2011, 4, 25, 22, 30, 48, 0, time.UTC),
	}

	out := Expand([]byte("$Id$\n"), "", ctx)
	require.Equal(t, "$Id: file,v 1.1 2011/04/25 22:30:48 uwe Exp $\n", string(out))
}

func TestExpandReplacesExistingValue(t *testing.T) {
	ctx := Context{
		Filename: "file",
		Revision: "1.2",
		Author:   "amy",
		State:    "Exp",
		Date:     time.Date(2012, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	out := Expand([]byte("$Id: file,v 1.1 2011/04/25 22:30:48 uwe Exp $\n"), "", ctx)
	require.Equal(t, "$Id: file,v 1.2 2012/01/01 00:00:00 amy Exp $\n", string(out))
}

func TestExpandSkipsBinaryMode(t *testing.T) {
	ctx := Context{Filename: "file", Revision: "1.1", Author: "uwe", Date: time.Now()}
	out := Expand([]byte("$Id$\n"), "b", ctx)
	require.Equal(t, "$Id$\n", string(out))
}

func TestExpandSkipsNonKVExpandMode(t *testing.T) {
	ctx := Context{Filename: "file", Revision: "1.1", Author: "uwe", Date: time.Now(), ExpandMode: "o"}
	out := Expand([]byte("$Id$\n"), "", ctx)
	require.Equal(t, "$Id$\n", string(out))
}

func TestExpandUnknownKeywordUntouched(t *testing.T) {
	ctx := Context{Filename: "file", Revision: "1.1", Author: "uwe", Date: time.Now()}
	out := Expand([]byte("$NotAKeyword$\n"), "", ctx)
	require.Equal(t, "$NotAKeyword$\n", string(out))
}

func TestExpandAuthorAndRevision(t *testing.T) {
	ctx := Context{
		Filename: "main.c",
		Revision: "2.3",
		Author:   "bob",
		State:    "Exp",
		Date:     time.Date(2020, 6, 1, 10, 0, 0, 0, time.UTC),
	}
	out := Expand([]byte("/* $Author$ $Revision$ */\n"), "", ctx)
	require.Equal(t, "/* $Author: bob $ $Revision: 2.3 $ */\n", string(out))
}

func TestExpandRCSfile(t *testing.T) {
	ctx := Context{Filename: "sub/dir/main.c", Revision: "1.1", Author: "bob", Date: time.Now()}
	out := Expand([]byte("$RCSfile$\n"), "", ctx)
	require.Equal(t, "$RCSfile: main.c,v $\n", string(out))
}

func TestExpandMdocdate(t *testing.T) {
	ctx := Context{Filename: "f", Revision: "1.1", Author: "x", Date: time.Date(2019, 3, 5, 0, 0, 0, 0, time.UTC)}
	out := Expand([]byte(".Dd $Mdocdate$\n"), "", ctx)
	require.Equal(t, ".Dd $Mdocdate: March 5 2019 $\n", string(out))
}

func TestExpandLocker(t *testing.T) {
	ctx := Context{Filename: "f", Revision: "1.1", Author: "x", Date: time.Now()}
	out := Expand([]byte("$Locker$\n"), "", ctx)
	require.Equal(t, "$Locker:  $\n", string(out))
}

func TestExpandLogKeyword(t *testing.T) {
	ctx := Context{
		Filename: "main.c",
		Revision: "1.3",
		Author:   "amy",
		Date:     time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		Log:      "Fix the thing\nand also the other thing\n",
	}
	out := Expand([]byte("// $Log$\n"), "", ctx)
	require.Equal(t, "// $Log: main.c,v $\n// Revision 1.3  2020/01/01 00:00:00  amy\n// Fix the thing\n// and also the other thing\n", string(out))
}

func TestExpandCustomLocalID(t *testing.T) {
	ctx := Context{
		Filename: "f",
		Revision: "1.1",
		Author:   "x",
		State:    "Exp",
		Date:     time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		LocalID:  "OpenBSD",
	}
	out := Expand([]byte("$OpenBSD$\n"), "", ctx)
	require.Equal(t, "$OpenBSD: f,v 1.1 2020/01/01 00:00:00 x Exp $\n", string(out))
}
