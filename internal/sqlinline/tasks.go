// Package sqlinline holds the SQL statements executed through the
// SQLRunner. Every statement starts with a --sql marker line the runner
// strips and logs, so query activity is traceable without dumping SQL.
package sqlinline

const QInsertTask = `--sql 7c1f2b44-9d31-4a8e-b5f0-3e6a8c1d2f90
insert into generation_tasks (id, provider, media_type, model_id, prompt, handle, status)
values ($1, $2, $3, $4, $5, $6, 'QUEUED');
`

const QClaimQueuedTask = `--sql e3a9d1c7-52b8-4f06-9a7e-08c4b5d6e1f2
with next_task as (
    select id
    from generation_tasks
    where status = 'QUEUED'
    order by created_at asc
    for update skip locked
    limit 1
),
updated as (
    update generation_tasks
    set status = 'TRACKING', updated_at = now()
    where id in (select id from next_task)
    returning id, provider, media_type, model_id, handle
)
select * from updated;
`

const QFinishTask = `--sql 1b8e6f03-74ad-4c29-8d5b-f2a0c9e7d345
update generation_tasks
set status = $2,
    updated_at = now(),
    error_message = nullif($3, ''),
    output_urls = $4
where id = $1;
`

const QSelectTask = `--sql 9f4c2e81-06db-4b57-a1c3-7d8e5f0a2b64
select id, provider, media_type, model_id, prompt, handle, status,
       coalesce(error_message, ''), coalesce(output_urls, '{}'),
       created_at, updated_at
from generation_tasks
where id = $1;
`
