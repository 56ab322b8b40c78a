package sync

import (
	"errors"
	"os"

	ksm "github.com/keeper-security/secrets-manager-go/core"
)

const (
	ksmConfigName = "KSM_CONFIG_BASE64"
	ksmRecordUid  = "KSM_RECORD_UID"
)

// ApplyKSMCredentials overlays credentials from a shared Keeper Secrets
// Manager login record when KSM_CONFIG_BASE64 is set. The record carries the
// Entra application id in the login field, the client secret in the password
// field, and the tenant id and XoneCloud token as custom fields. Values
// already present in the config are kept.
func ApplyKSMCredentials(cfg *Config) error {
	configBase64 := os.Getenv(ksmConfigName)
	if configBase64 == "" {
		return nil
	}

	storage := ksm.NewMemoryKeyValueStorage(configBase64)
	sm := ksm.NewSecretsManager(&ksm.ClientOptions{Config: storage})

	var filter []string
	if recordUid := os.Getenv(ksmRecordUid); recordUid != "" {
		filter = append(filter, recordUid)
	}

	records, err := sm.GetSecrets(filter)
	if err != nil {
		return err
	}

	var credRecord *ksm.Record
	for _, r := range records {
		if r.Type() != "login" {
			continue
		}
		if len(r.GetCustomFieldsByLabel("Tenant ID")) == 0 {
			continue
		}
		credRecord = r
		break
	}
	if credRecord == nil {
		return errors.New("no login record with a \"Tenant ID\" custom field is shared to the KSM application")
	}

	if cfg.Azure.ClientId == "" {
		cfg.Azure.ClientId = credRecord.GetFieldValueByType("login")
	}
	if cfg.Azure.ClientSecret == "" {
		cfg.Azure.ClientSecret = credRecord.Password()
	}
	if cfg.Azure.TenantId == "" {
		cfg.Azure.TenantId = customFieldValue(credRecord, "Tenant ID")
		if cfg.Azure.TenantId != "" && os.Getenv("AZ_TOKEN_URL") == "" {
			cfg.Azure.TokenURL = "https://login.microsoftonline.com/" + cfg.Azure.TenantId + "/oauth2/v2.0/token"
		}
	}
	if cfg.Xone.APIToken == "" {
		cfg.Xone.APIToken = customFieldValue(credRecord, "XoneCloud Token")
	}
	return nil
}

func customFieldValue(record *ksm.Record, label string) string {
	fields := record.GetCustomFieldsByLabel(label)
	for _, field := range fields {
		switch v := field["value"].(type) {
		case string:
			return v
		case []any:
			for _, item := range v {
				if s, ok := item.(string); ok {
					return s
				}
			}
		}
	}
	return ""
}
