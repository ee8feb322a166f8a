package config

import "os"

// Credentials are the warehouse secrets. They are read from the environment
// once at startup and never written to logs.
type Credentials struct {
	User            string
	Password        string
	Account         string
	Warehouse       string
	Database        string
	Schema          string
	Role            string
	MotherDuckToken string
}

// LoadCredentials reads the warehouse secrets using getenv, normally os.Getenv.
func LoadCredentials(getenv func(string) string) Credentials {
	if getenv == nil {
		getenv = os.Getenv
	}
	return Credentials{
		User:            getenv("WAREHOUSE_USER"),
		Password:        getenv("WAREHOUSE_PASSWORD"),
		Account:         getenv("WAREHOUSE_ACCOUNT"),
		Warehouse:       getenv("WAREHOUSE_WAREHOUSE"),
		Database:        getenv("WAREHOUSE_DATABASE"),
		Schema:          getenv("WAREHOUSE_SCHEMA"),
		Role:            getenv("WAREHOUSE_ROLE"),
		MotherDuckToken: getenv("MOTHERDUCK_TOKEN"),
	}
}
