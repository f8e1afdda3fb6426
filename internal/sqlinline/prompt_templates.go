package sqlinline

const QSelectActivePromptTemplates = `--sql 3f6b9c1e-52d4-4a8e-9b07-c1d2e3f4a5b6
select generation_template, edit_template, edit_line_template, updated_at
from prompt_templates
where is_active
order by updated_at desc
limit 1;
`

const QUpsertPromptTemplates = `--sql 9d2e7a40-6b1c-4f35-8e9a-0a1b2c3d4e5f
with deactivated as (
    update prompt_templates set is_active = false, updated_at = now()
    where is_active
    returning id
)
insert into prompt_templates (id, generation_template, edit_template, edit_line_template, is_active, created_at, updated_at)
values (gen_random_uuid(), nullif($1::text, ''), nullif($2::text, ''), nullif($3::text, ''), true, now(), now())
returning id;
`
