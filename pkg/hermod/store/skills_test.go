package store

import (
	"errors"
	"testing"
)

func TestSkillCRUD(t *testing.T) {
	st := testStore(t)

	skill, err := st.CreateSkill("weather", "report the weather", "You can report weather.", true)
	if err != nil {
		t.Fatalf("CreateSkill: %v", err)
	}
	if skill.ID == "" {
		t.Fatal("empty skill id")
	}

	got, err := st.GetSkill(skill.ID)
	if err != nil {
		t.Fatalf("GetSkill: %v", err)
	}
	if got.Name != "weather" || !got.Enabled {
		t.Errorf("GetSkill = %+v", got)
	}

	updated, err := st.UpdateSkill(skill.ID, "weather", "updated", "New content.", false)
	if err != nil {
		t.Fatalf("UpdateSkill: %v", err)
	}
	if updated.Description != "updated" || updated.Enabled {
		t.Errorf("UpdateSkill = %+v", updated)
	}

	skills, err := st.ListSkills()
	if err != nil {
		t.Fatalf("ListSkills: %v", err)
	}
	if len(skills) != 1 {
		t.Fatalf("ListSkills len = %d, want 1", len(skills))
	}

	if err := st.DeleteSkill(skill.ID); err != nil {
		t.Fatalf("DeleteSkill: %v", err)
	}
	if _, err := st.GetSkill(skill.ID); !errors.Is(err, ErrSkillNotFound) {
		t.Errorf("GetSkill after delete = %v, want ErrSkillNotFound", err)
	}
}

func TestSkillNotFound(t *testing.T) {
	st := testStore(t)

	if _, err := st.GetSkill("ghost"); !errors.Is(err, ErrSkillNotFound) {
		t.Errorf("GetSkill = %v, want ErrSkillNotFound", err)
	}
	if _, err := st.UpdateSkill("ghost", "a", "b", "c", true); !errors.Is(err, ErrSkillNotFound) {
		t.Errorf("UpdateSkill = %v, want ErrSkillNotFound", err)
	}
	if err := st.DeleteSkill("ghost"); !errors.Is(err, ErrSkillNotFound) {
		t.Errorf("DeleteSkill = %v, want ErrSkillNotFound", err)
	}
}

func TestQueryLogsPagination(t *testing.T) {
	st := testStore(t)

	for i := 0; i < 5; i++ {
		if err := st.InsertLog("INFO", "relay", "message"); err != nil {
			t.Fatalf("InsertLog: %v", err)
		}
	}
	if err := st.InsertLog("ERROR", "engine", "boom"); err != nil {
		t.Fatalf("InsertLog: %v", err)
	}

	entries, total, err := st.QueryLogs(1, 4, "")
	if err != nil {
		t.Fatalf("QueryLogs: %v", err)
	}
	if total != 6 {
		t.Errorf("total = %d, want 6", total)
	}
	if len(entries) != 4 {
		t.Errorf("page len = %d, want 4", len(entries))
	}

	entries, total, err = st.QueryLogs(2, 4, "")
	if err != nil {
		t.Fatalf("QueryLogs page 2: %v", err)
	}
	if total != 6 || len(entries) != 2 {
		t.Errorf("page 2 = %d entries, total %d", len(entries), total)
	}

	errsOnly, total, err := st.QueryLogs(1, 50, "ERROR")
	if err != nil {
		t.Fatalf("QueryLogs(ERROR): %v", err)
	}
	if total != 1 || len(errsOnly) != 1 || errsOnly[0].Message != "boom" {
		t.Errorf("level filter = %+v, total %d", errsOnly, total)
	}
}

func TestConfigValues(t *testing.T) {
	st := testStore(t)

	values, err := st.ConfigValues()
	if err != nil {
		t.Fatalf("ConfigValues: %v", err)
	}
	if len(values) != 0 {
		t.Errorf("fresh store has config: %v", values)
	}

	if err := st.SetConfigValue("model", "gpt-4o-mini"); err != nil {
		t.Fatalf("SetConfigValue: %v", err)
	}
	// Upsert replaces.
	if err := st.SetConfigValue("model", "gpt-4o"); err != nil {
		t.Fatalf("SetConfigValue update: %v", err)
	}

	values, err = st.ConfigValues()
	if err != nil {
		t.Fatalf("ConfigValues: %v", err)
	}
	if values["model"] != "gpt-4o" {
		t.Errorf("model = %q, want gpt-4o", values["model"])
	}
}
