package sync

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func rosterUser(id, name, email, dept string, enabled bool) *DirectoryUser {
	return &DirectoryUser{
		Id:          id,
		DisplayName: name,
		Email:       email,
		Department:  dept,
		Enabled:     enabled,
	}
}

func TestBuildOnlyEnabledScenario(t *testing.T) {
	u1 := rosterUser("1", "Ana Souza", "ana.souza@arctica.com.br", "Sales", true)
	u2 := rosterUser("2", "Bruno Lima", "bruno.lima@arctica.com.br", "Sales", false)
	u2.ManagerId = "1"

	departments, collaborators := Build([]*DirectoryUser{u1, u2}, RunConfig{OnlyEnabled: true})

	require.Len(t, departments, 1)
	require.Equal(t, "Sales", departments[0].Name)

	require.Len(t, collaborators, 1)
	require.Equal(t, "1", collaborators[0].ExternalId)
	require.Equal(t, "Sales", collaborators[0].Department)
	require.Empty(t, collaborators[0].ManagerId)
}

func TestBuildFilterOrder(t *testing.T) {
	svc := rosterUser("3", "backup-service", "backup-svc@arctica.com.br", "TI", true)
	svc.ServiceAccount = true

	users := []*DirectoryUser{
		rosterUser("1", "Ana Souza", "ana@arctica.com.br", "Sales", true),
		rosterUser("2", "Bruno Lima", "bruno@arctica.com.br", "Sales", false),
		svc,
		rosterUser("4", "Carla Dias", "carla@arctica.com.br", "", true),
	}

	cfg := RunConfig{OnlyEnabled: true, ExcludeServiceAccounts: true, ExcludeWithoutDepartment: true}
	_, collaborators := Build(users, cfg)

	require.Len(t, collaborators, 1)
	require.Equal(t, "1", collaborators[0].ExternalId)

	for _, c := range collaborators {
		require.True(t, c.Status)
		require.NotEmpty(t, c.Department)
	}
}

func TestBuildDepartmentsFirstSeenOrder(t *testing.T) {
	users := []*DirectoryUser{
		rosterUser("1", "Ana", "ana@arctica.com.br", "Sales", true),
		rosterUser("2", "Bruno", "bruno@arctica.com.br", "TI", true),
		rosterUser("3", "Carla", "carla@arctica.com.br", "Sales", true),
		rosterUser("4", "Davi", "davi@arctica.com.br", "RH", true),
	}

	departments, _ := Build(users, RunConfig{})

	names := make([]string, 0, len(departments))
	for _, d := range departments {
		names = append(names, d.Name)
	}
	require.Equal(t, []string{"Sales", "TI", "RH"}, names)
}

func TestBuildDepartmentFirstManagerWins(t *testing.T) {
	u1 := rosterUser("1", "Ana", "ana@arctica.com.br", "Sales", true)
	u2 := rosterUser("2", "Bruno", "bruno@arctica.com.br", "Sales", true)
	u2.ManagerId = "9"
	u2.ManagerName = "Gerente Silva"
	u2.ManagerEmail = "gerente@arctica.com.br"
	u3 := rosterUser("3", "Carla", "carla@arctica.com.br", "Sales", true)
	u3.ManagerId = "8"
	u3.ManagerName = "Outro Gerente"
	u3.ManagerEmail = "outro@arctica.com.br"

	departments, _ := Build([]*DirectoryUser{u1, u2, u3}, RunConfig{})

	require.Len(t, departments, 1)
	require.Equal(t, "Gerente Silva", departments[0].Manager)
	require.Equal(t, "gerente@arctica.com.br", departments[0].ManagerEmail)
	require.Equal(t, "ana", departments[0].UserName)
}

func TestBuildPlaceholderDepartments(t *testing.T) {
	svc := rosterUser("2", "sync-bot", "sync-bot@arctica.com.br", "", true)
	svc.ServiceAccount = true
	users := []*DirectoryUser{
		rosterUser("1", "Ana", "ana@arctica.com.br", "", true),
		svc,
	}

	departments, collaborators := Build(users, RunConfig{})

	require.Len(t, collaborators, 2)
	require.Equal(t, "Sem Departamento", collaborators[0].Department)
	require.Equal(t, "Jornada padrão", collaborators[0].Workingday)
	require.Equal(t, "Conta de Serviço", collaborators[1].Department)
	require.Equal(t, "N/A", collaborators[1].Workingday)

	// Every collaborator's department must exist in the department set.
	deptNames := make(map[string]struct{}, len(departments))
	for _, d := range departments {
		deptNames[d.Name] = struct{}{}
	}
	for _, c := range collaborators {
		require.Contains(t, deptNames, c.Department)
	}
}

func TestBuildManagerResolution(t *testing.T) {
	svcManager := rosterUser("9", "old-admin", "legacy-admin@arctica.com.br", "TI", true)
	svcManager.ServiceAccount = true

	report := rosterUser("1", "Ana", "ana@arctica.com.br", "TI", true)
	report.ManagerId = "9"
	peer := rosterUser("2", "Bruno", "bruno@arctica.com.br", "TI", true)
	peer.ManagerId = "1"

	_, collaborators := Build([]*DirectoryUser{svcManager, report, peer}, RunConfig{ExcludeServiceAccounts: true})

	require.Len(t, collaborators, 2)

	ids := make(map[string]struct{}, len(collaborators))
	for _, c := range collaborators {
		ids[c.ExternalId] = struct{}{}
	}
	for _, c := range collaborators {
		if c.ManagerId != "" {
			require.Contains(t, ids, c.ManagerId)
		}
	}
	require.Empty(t, collaborators[0].ManagerId, "manager filtered out, reference must be nulled")
	require.Equal(t, "1", collaborators[1].ManagerId)
}

func TestBuildDeterministic(t *testing.T) {
	users := []*DirectoryUser{
		rosterUser("1", "Ana Souza", "ana.souza@arctica.com.br", "Sales", true),
		rosterUser("2", "Bruno Lima", "bruno.lima@arctica.com.br", "TI", false),
		rosterUser("3", "Carla Dias", "carla.dias@arctica.com.br", "", true),
	}
	cfg := RunConfig{OnlyEnabled: false, ExcludeWithoutDepartment: false}

	d1, c1 := Build(users, cfg)
	d2, c2 := Build(users, cfg)

	require.Equal(t, d1, d2)
	require.Equal(t, c1, c2)
}

func TestBuildUsernameDerivation(t *testing.T) {
	withEmpId := rosterUser("1", "Ana", "ana.souza@arctica.com.br", "Sales", true)
	withEmpId.EmployeeId = "E-1042"

	accented := rosterUser("2", "José", "josé.araújo@arctica.com.br", "Sales", true)

	long := rosterUser("3", "Long", "a.very.long.username.that.exceeds.the.limit@arctica.com.br", "Sales", true)

	_, collaborators := Build([]*DirectoryUser{withEmpId, accented, long}, RunConfig{})

	require.Equal(t, "E-1042", collaborators[0].Username)
	require.Equal(t, "jose.araujo", collaborators[1].Username)
	require.LessOrEqual(t, len(collaborators[2].Username), 32)
	require.Regexp(t, `^[A-Za-z0-9._-]+$`, collaborators[1].Username)
}

func TestBuildUsernameCollision(t *testing.T) {
	users := []*DirectoryUser{
		rosterUser("1", "Ana A", "ana@arctica.com.br", "Sales", true),
		rosterUser("2", "Ana B", "ana@sub.arctica.com.br", "Sales", true),
		rosterUser("3", "Ana C", "ana@other.arctica.com.br", "Sales", true),
	}

	_, collaborators := Build(users, RunConfig{})

	seen := make(map[string]struct{})
	for _, c := range collaborators {
		_, taken := seen[c.Username]
		require.False(t, taken, "username %q assigned twice", c.Username)
		seen[c.Username] = struct{}{}
	}
	require.Equal(t, "ana", collaborators[0].Username)
	require.Equal(t, "ana-1", collaborators[1].Username)
	require.Equal(t, "ana-2", collaborators[2].Username)
}

func TestBuildUsernameCollisionAtLengthCap(t *testing.T) {
	// 32-char base: the suffix must displace base characters, never be
	// truncated away, or successive candidates would repeat forever.
	local := "abcdefghijklmnopqrstuvwxyz.abcde"
	require.Len(t, local, 32)

	users := make([]*DirectoryUser, 0, 15)
	for i := 0; i < 15; i++ {
		users = append(users, rosterUser(strconv.Itoa(i+1), "Clone", local+"@arctica.com.br", "Sales", true))
	}

	_, collaborators := Build(users, RunConfig{})

	require.Len(t, collaborators, 15)
	seen := make(map[string]struct{})
	for _, c := range collaborators {
		require.LessOrEqual(t, len(c.Username), 32)
		_, taken := seen[c.Username]
		require.False(t, taken, "username %q assigned twice", c.Username)
		seen[c.Username] = struct{}{}
	}
	require.Equal(t, local, collaborators[0].Username)
	require.Equal(t, local[:30]+"-1", collaborators[1].Username)
	require.Equal(t, local[:29]+"-10", collaborators[10].Username)
}

func TestIsServiceAccount(t *testing.T) {
	require.True(t, isServiceAccount("backup-svc@arctica.com.br", "Backup"))
	require.True(t, isServiceAccount("user@arctica.com.br", "Noreply Mailer"))
	require.False(t, isServiceAccount("ana.souza@arctica.com.br", "Ana Souza"))
}
