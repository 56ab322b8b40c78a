package sync

import (
	"strconv"
	"strings"
)

const (
	deptNoDepartment   = "Sem Departamento"
	deptServiceAccount = "Conta de Serviço"

	placeholderManagerName  = "Manager Name"
	placeholderManagerEmail = "manager.email@arctica.com.br"

	workingdayDefault = "Jornada padrão"
	workingdayNone    = "N/A"
)

// Build turns the fetched roster into the two target collections. It is pure
// and deterministic: same input and config, same output.
//
// Filters apply in order: disabled accounts, service accounts, users without
// a department label. A manager reference survives only when the manager
// itself survived filtering; otherwise the reference is nulled so the output
// never carries a dangling id.
func Build(users []*DirectoryUser, cfg RunConfig) ([]Department, []Collaborator) {
	survivors := make([]*DirectoryUser, 0, len(users))
	for _, u := range users {
		if cfg.OnlyEnabled && !u.Enabled {
			continue
		}
		if cfg.ExcludeServiceAccounts && u.ServiceAccount {
			continue
		}
		if cfg.ExcludeWithoutDepartment && u.Department == "" {
			continue
		}
		survivors = append(survivors, u)
	}

	survivorIds := make(map[string]struct{}, len(survivors))
	for _, u := range survivors {
		survivorIds[u.Id] = struct{}{}
	}

	departments := buildDepartments(survivors)
	collaborators := buildCollaborators(survivors, survivorIds)
	return departments, collaborators
}

// effectiveDepartment substitutes the placeholder labels the target platform
// expects when a user has no department but was not filtered out.
func effectiveDepartment(u *DirectoryUser) string {
	if u.Department != "" {
		return u.Department
	}
	if u.ServiceAccount {
		return deptServiceAccount
	}
	return deptNoDepartment
}

func buildDepartments(users []*DirectoryUser) []Department {
	var order []string
	byName := make(map[string]*Department)

	for _, u := range users {
		name := effectiveDepartment(u)

		managerName, managerEmail := placeholderManagerName, placeholderManagerEmail
		if u.ManagerName != "" {
			managerName = u.ManagerName
			managerEmail = u.ManagerEmail
		}

		if dept, ok := byName[name]; ok {
			// First real manager wins over the placeholder.
			if dept.Manager == placeholderManagerName && managerName != placeholderManagerName {
				dept.Manager = managerName
				dept.ManagerEmail = managerEmail
			}
			continue
		}

		order = append(order, name)
		byName[name] = &Department{
			Name:         name,
			Manager:      managerName,
			ManagerEmail: managerEmail,
			UserName:     emailLocalPart(u.Email),
		}
	}

	result := make([]Department, 0, len(order))
	for _, name := range order {
		result = append(result, *byName[name])
	}
	return result
}

func buildCollaborators(users []*DirectoryUser, survivorIds map[string]struct{}) []Collaborator {
	result := make([]Collaborator, 0, len(users))
	seen := make(map[string]struct{}, len(users))

	for _, u := range users {
		username := uniqueUsername(buildUsername(u), seen)

		workingday := workingdayDefault
		if u.ServiceAccount {
			workingday = workingdayNone
		}

		managerId := ""
		if u.ManagerId != "" {
			if _, ok := survivorIds[u.ManagerId]; ok {
				managerId = u.ManagerId
			}
		}

		result = append(result, Collaborator{
			Username:    username,
			DisplayName: u.DisplayName,
			Status:      u.Enabled,
			JobTitle:    u.JobTitle,
			Department:  effectiveDepartment(u),
			Workingday:  workingday,
			Email:       u.Email,
			ExternalId:  u.Id,
			ManagerId:   managerId,
		})
	}
	return result
}

// uniqueUsername resolves collisions with a numeric suffix, keeping the
// result within the length cap. The base is trimmed to fit the whole suffix,
// so every candidate is distinct and the loop always terminates.
func uniqueUsername(username string, seen map[string]struct{}) string {
	base := username
	if base == "" {
		base = "user"
	}
	suffix := 1
	for {
		if username != "" {
			if _, taken := seen[username]; !taken {
				break
			}
		}
		tag := "-" + strconv.Itoa(suffix)
		trimmed := base
		if len(trimmed)+len(tag) > maxUsernameLen {
			trimmed = trimmed[:maxUsernameLen-len(tag)]
		}
		username = trimmed + tag
		suffix++
	}
	seen[username] = struct{}{}
	return username
}

func emailLocalPart(email string) string {
	if at := strings.IndexByte(email, '@'); at >= 0 {
		return email[:at]
	}
	return email
}
