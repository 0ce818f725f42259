package requirements

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pentops/log.go/log"
	"github.com/stretchr/testify/assert"
)

func TestParseMajorVersion(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want int
	}{
		{"", 0},
		{"1.8.0_292", 8},
		{"11.0.2", 11},
		{"17", 17},
		{"21-ea", 21},
		{"unknown", 0},
	} {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseMajorVersion(tc.in))
		})
	}
}

func TestParseVMArgs(t *testing.T) {
	for _, tc := range []struct {
		name string
		in   string
		want []string
	}{{
		name: "empty",
		in:   "",
		want: []string{},
	}, {
		name: "simple",
		in:   "-Xmx1G  -Dfoo=bar",
		want: []string{"-Xmx1G", "-Dfoo=bar"},
	}, {
		name: "quoted",
		in:   `-Xmx1G "-Dname=a b"`,
		want: []string{"-Xmx1G", "-Dname=a b"},
	}, {
		name: "escaped quotes",
		in:   `-Dfoo=\"bar\"`,
		want: []string{`-Dfoo="bar"`},
	}, {
		name: "duplicates",
		in:   "-Xmx1G -Xmx1G -Dx=1",
		want: []string{"-Xmx1G", "-Dx=1"},
	}} {
		t.Run(tc.name, func(t *testing.T) {
			if diff := cmp.Diff(tc.want, ParseVMArgs(tc.in)); diff != "" {
				t.Errorf("unexpected args (-want +got):\n%s", diff)
			}
		})
	}
}

func TestJavaAgent(t *testing.T) {
	agent, ok := JavaAgent([]string{"-Xmx1G", "-javaagent:/opt/lombok.jar"})
	assert.True(t, ok)
	assert.Equal(t, "/opt/lombok.jar", agent)

	_, ok = JavaAgent([]string{"-Xmx1G"})
	assert.False(t, ok)
}

func fakeJavaHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	if err := os.MkdirAll(filepath.Join(home, "bin"), 0o755); err != nil {
		t.Fatal(err.Error())
	}
	if err := os.WriteFile(filepath.Join(home, "bin", "java"), []byte{}, 0o755); err != nil {
		t.Fatal(err.Error())
	}
	return home
}

func testResolver(env map[string]string, versions map[string]string) *Resolver {
	return &Resolver{
		GOOS:         "linux",
		SettingsPath: "/ws/.camelkit.yaml",
		Getenv: func(key string) string {
			return env[key]
		},
		LookPath: func(string) (string, error) {
			return "", errors.New("not found")
		},
		JavaVersion: func(_ context.Context, executable string) (string, error) {
			v, ok := versions[executable]
			if !ok {
				return "", errors.New("no java")
			}
			return v, nil
		},
	}
}

func TestResolveFromSetting(t *testing.T) {
	log.DefaultLogger = log.NewTestLogger(t)
	ctx := context.Background()

	home := fakeJavaHome(t)
	exe := filepath.Join(home, "bin", "java")

	resolver := testResolver(nil, map[string]string{exe: "17.0.9"})
	java, err := resolver.Resolve(ctx, home)
	if err != nil {
		t.Fatal(err.Error())
	}
	assert.Equal(t, home, java.Home)
	assert.Equal(t, 17, java.Version)

	reqErr := &Error{}

	_, err = resolver.Resolve(ctx, filepath.Join(home, "missing"))
	if assert.ErrorAs(t, err, &reqErr) {
		assert.Equal(t, LabelOpenSettings, reqErr.Label)
		assert.Equal(t, "/ws/.camelkit.yaml", reqErr.Action)
		assert.Contains(t, reqErr.Message, "missing or inaccessible")
	}

	_, err = resolver.Resolve(ctx, filepath.Join(home, "bin"))
	if assert.ErrorAs(t, err, &reqErr) {
		assert.Contains(t, reqErr.Message, "'bin' should be removed")
	}

	_, err = resolver.Resolve(ctx, t.TempDir())
	if assert.ErrorAs(t, err, &reqErr) {
		assert.Contains(t, reqErr.Message, "does not point to a JRE")
	}
}

func TestResolveTooOld(t *testing.T) {
	log.DefaultLogger = log.NewTestLogger(t)

	home := fakeJavaHome(t)
	exe := filepath.Join(home, "bin", "java")
	resolver := testResolver(nil, map[string]string{exe: "1.8.0_292"})

	_, err := resolver.Resolve(context.Background(), home)
	reqErr := &Error{}
	if assert.ErrorAs(t, err, &reqErr) {
		assert.Equal(t, LabelGetJDK, reqErr.Label)
		assert.Equal(t, JDKURL("linux"), reqErr.Action)
	}
}

func TestResolveDiscovery(t *testing.T) {
	log.DefaultLogger = log.NewTestLogger(t)

	jdkHome := fakeJavaHome(t)
	javaHome := fakeJavaHome(t)

	for _, tc := range []struct {
		name     string
		versions map[string]string
		want     string
		wantErr  bool
	}{{
		name: "JDK_HOME ranks first",
		versions: map[string]string{
			filepath.Join(jdkHome, "bin", "java"):  "21.0.1",
			filepath.Join(javaHome, "bin", "java"): "17.0.1",
		},
		want: jdkHome,
	}, {
		name: "too old JDK_HOME skipped",
		versions: map[string]string{
			filepath.Join(jdkHome, "bin", "java"):  "11.0.1",
			filepath.Join(javaHome, "bin", "java"): "17.0.1",
		},
		want: javaHome,
	}, {
		name: "none suitable",
		versions: map[string]string{
			filepath.Join(jdkHome, "bin", "java"): "11.0.1",
		},
		wantErr: true,
	}} {
		t.Run(tc.name, func(t *testing.T) {
			resolver := testResolver(map[string]string{
				"JDK_HOME":  jdkHome,
				"JAVA_HOME": javaHome,
			}, tc.versions)

			java, err := resolver.Resolve(context.Background(), "")
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			if err != nil {
				t.Fatal(err.Error())
			}
			assert.Equal(t, tc.want, java.Home)
		})
	}
}

func TestJDKURL(t *testing.T) {
	assert.NotEqual(t, JDKURL("darwin"), JDKURL("linux"))
	assert.Equal(t, JDKURL("windows"), JDKURL("linux"))
}
