package unitbuilder

import (
	"sort"
	"strconv"
	"strings"

	corev1 "k8s.io/api/core/v1"

	"muster/internal/agenterror"
	"muster/internal/pod"
	"muster/internal/template"
	"muster/pkg/logging"
)

const subsystem = "UnitBuilder"

// Result is the output of Build: the rendered unit and the canonical unit
// name it should be written under.
type Result struct {
	UnitName string
	Unit     UnitFile
}

// Build produces the canonical unit content for one container of a pod. It
// is a pure function of its inputs: two calls with equal arguments always
// yield byte-identical UnitFile.String() output.
//
// packageDir is the resolved installation directory for the container's
// image coordinate (internal/pod.PackageDir). userMode reports whether the
// target supervisor session is per-user, in which case a declared user name
// is omitted from the unit rather than rejected.
func Build(ctx pod.Context, p *corev1.Pod, container *corev1.Container, packageDir string, templater *template.Engine, userMode bool) (*Result, error) {
	unitName := ctx.UnitName(container.Name)
	vars := ctx.TemplateContext(packageDir)

	execStart, err := buildExecStart(container, packageDir, templater, vars)
	if err != nil {
		return nil, err
	}

	restart, err := MapRestartPolicy(p.Spec.RestartPolicy)
	if err != nil {
		return nil, err
	}

	unitSection := NewSection("Unit")
	unitSection.Add("Description", unitName)

	serviceSection := NewSection("Service")
	serviceSection.Add("ExecStart", execStart)

	env, err := buildEnvironment(container, templater, vars)
	if err != nil {
		return nil, err
	}
	if env != "" {
		serviceSection.Add("Environment", env)
	}

	serviceSection.Add("Restart", restart)

	if userName, declared, err := resolveUser(container); err != nil {
		return nil, err
	} else if declared {
		if userMode {
			logging.Info(subsystem, "omitting User= for %s: supervisor is running in per-user mode", unitName)
		} else {
			serviceSection.Add("User", userName)
		}
	}

	serviceSection.Add("StandardOutput", "journal")
	serviceSection.Add("StandardError", "journal")

	installSection := NewSection("Install")
	installSection.Add("WantedBy", "multi-user.target")

	return &Result{
		UnitName: unitName,
		Unit: UnitFile{
			Sections: []Section{unitSection, serviceSection, installSection},
		},
	}, nil
}

func buildExecStart(container *corev1.Container, packageDir string, templater *template.Engine, vars map[string]string) (string, error) {
	if len(container.Command) == 0 {
		return "", agenterror.NewValidation("container %q has no command", container.Name)
	}

	argv0Raw := container.Command[0]
	hasRootPrefix := template.HasPrefix(argv0Raw, template.PackageRoot)

	argv0, err := templater.Render(argv0Raw, vars)
	if err != nil {
		return "", agenterror.NewTemplate("rendering command[0] for %s: %w", container.Name, err)
	}
	if !hasRootPrefix {
		argv0 = packageDir + "/" + argv0
	}

	rest, err := templater.RenderAll(container.Command[1:], vars)
	if err != nil {
		return "", agenterror.NewTemplate("rendering command for %s: %w", container.Name, err)
	}

	args, err := templater.RenderAll(container.Args, vars)
	if err != nil {
		return "", agenterror.NewTemplate("rendering args for %s: %w", container.Name, err)
	}

	parts := append([]string{argv0}, rest...)
	parts = append(parts, args...)
	return strings.Join(parts, " "), nil
}

func buildEnvironment(container *corev1.Container, templater *template.Engine, vars map[string]string) (string, error) {
	if len(container.Env) == 0 {
		return "", nil
	}

	raw := make(map[string]string, len(container.Env))
	for _, e := range container.Env {
		raw[e.Name] = e.Value
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	quoted := make([]string, 0, len(keys))
	for _, k := range keys {
		v, err := templater.Render(raw[k], vars)
		if err != nil {
			return "", agenterror.NewTemplate("rendering environment %s for %s: %w", k, container.Name, err)
		}
		quoted = append(quoted, strconv.Quote(k+"="+v))
	}
	return strings.Join(quoted, " "), nil
}

// resolveUser extracts and validates the declared user name, if any. The
// second return value reports whether a user name was declared at all.
func resolveUser(container *corev1.Container) (string, bool, error) {
	if container.SecurityContext == nil || container.SecurityContext.WindowsOptions == nil {
		return "", false, nil
	}
	name := container.SecurityContext.WindowsOptions.RunAsUserName
	if name == nil || *name == "" {
		return "", false, nil
	}
	if !ValidUserName(*name) {
		return "", false, agenterror.NewValidation("invalid user name %q for container %s", *name, container.Name)
	}
	return *name, true, nil
}
